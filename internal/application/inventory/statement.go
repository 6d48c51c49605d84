package inventory

import (
	"context"
	"fmt"
	"time"
)

// PeriodStatement genera el extracto PDF de un periodo existente.
func (s *LedgerService) PeriodStatement(ctx context.Context, renderer StatementRenderer, tenantID, productID string, year int, month time.Month) ([]byte, error) {
	p, err := s.GetPeriod(ctx, tenantID, productID, year, month)
	if err != nil {
		return nil, err
	}
	doc, err := renderer.RenderPeriodStatement(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("extracto %s: %w", p.Key, err)
	}
	return doc, nil
}
