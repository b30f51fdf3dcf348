// internal/repository/memory/block_request_repo.go
package memory

import (
	"context"
	"fmt"
	"time"

	"bankcards/internal/domain"
	"bankcards/internal/util"
)

type blockRequestRepo struct {
	tx *memTx
}

func (r *blockRequestRepo) Create(ctx context.Context, req *domain.CardBlockRequest) error {
	if err := r.tx.writable("create block request"); err != nil {
		return err
	}
	t := r.tx.tables()
	if _, ok := t.cards[req.CardID]; !ok {
		return fmt.Errorf("%w: card %d does not exist", util.ErrPersistence, req.CardID)
	}
	if req.Status == domain.BlockRequestPending {
		if pending, _ := r.HasPending(ctx, req.CardID); pending {
			return fmt.Errorf("pending block request for card %d: %w", req.CardID, util.ErrConflict)
		}
	}
	r.tx.store.seq.blockRequest++
	req.ID = r.tx.store.seq.blockRequest
	t.blockRequests[req.ID] = *req
	return nil
}

func (r *blockRequestRepo) GetByID(ctx context.Context, id int64) (*domain.CardBlockRequest, error) {
	req, ok := r.tx.tables().blockRequests[id]
	if !ok {
		return nil, fmt.Errorf("block request %d: %w", id, util.ErrNotFound)
	}
	return &req, nil
}

func (r *blockRequestRepo) HasPending(ctx context.Context, cardID int64) (bool, error) {
	for _, req := range r.tx.tables().blockRequests {
		if req.CardID == cardID && req.Status == domain.BlockRequestPending {
			return true, nil
		}
	}
	return false, nil
}

func (r *blockRequestRepo) ResolvePending(ctx context.Context, cardID int64, status domain.BlockRequestStatus) (int64, error) {
	if err := r.tx.writable("resolve block requests"); err != nil {
		return 0, err
	}
	var n int64
	for id, req := range r.tx.tables().blockRequests {
		if req.CardID != cardID || req.Status != domain.BlockRequestPending {
			continue
		}
		req.Status = status
		req.UpdatedAt = time.Now().UTC()
		r.tx.tables().blockRequests[id] = req
		n++
	}
	return n, nil
}

func (r *blockRequestRepo) UpdateStatus(ctx context.Context, id int64, status domain.BlockRequestStatus) error {
	if err := r.tx.writable("update block request"); err != nil {
		return err
	}
	req, ok := r.tx.tables().blockRequests[id]
	if !ok {
		return fmt.Errorf("block request %d: %w", id, util.ErrNotFound)
	}
	req.Status = status
	req.UpdatedAt = time.Now().UTC()
	r.tx.tables().blockRequests[id] = req
	return nil
}

func (r *blockRequestRepo) List(ctx context.Context, page domain.Page) ([]domain.CardBlockRequest, int64, error) {
	t := r.tx.tables()
	keys := sortedKeys(t.blockRequests, true)
	start, end := window(len(keys), page)
	out := make([]domain.CardBlockRequest, 0, end-start)
	for _, id := range keys[start:end] {
		out = append(out, t.blockRequests[id])
	}
	return out, int64(len(keys)), nil
}
