package service

import (
	"context"
	"fmt"

	"github.com/utafrali/farmmarket/internal/domain"
	"github.com/utafrali/farmmarket/internal/repository"
)

// ProductService exposes the read-only catalog.
type ProductService struct {
	repo repository.ProductRepository
}

// NewProductService creates a new product service.
func NewProductService(repo repository.ProductRepository) *ProductService {
	return &ProductService{repo: repo}
}

// Get returns a product by ID.
func (s *ProductService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get product: %w", err)
	}
	return p, nil
}

// ListByFarmer returns the products a farmer sells.
func (s *ProductService) ListByFarmer(ctx context.Context, farmerID string) ([]domain.Product, error) {
	products, err := s.repo.ListByFarmer(ctx, farmerID)
	if err != nil {
		return nil, fmt.Errorf("list farmer products: %w", err)
	}
	if products == nil {
		products = []domain.Product{}
	}
	return products, nil
}
