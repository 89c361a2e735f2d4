package domain

// Author is the denormalized profile snapshot shown next to a review.
type Author struct {
	UserID    string `json:"user_id"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url,omitempty"`
	Role      string `json:"role"`
}
