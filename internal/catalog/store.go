package catalog

import (
	"context"
	"errors"

	"github.com/libp2p/go-libp2p/core/peer"
	"gorm.io/gorm"
)

// RecordShare stores the path served under name. Sharing a name again
// replaces its path; created reports whether the name was new.
func (c *Catalog) RecordShare(ctx context.Context, name, path string) (Share, bool, error) {
	var share Share
	err := c.db.WithContext(ctx).Where("name = ?", name).First(&share).Error
	if err == nil {
		if share.Path != path {
			share.Path = path
			if err := c.db.WithContext(ctx).Save(&share).Error; err != nil {
				return Share{}, false, err
			}
		}
		return share, false, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return Share{}, false, err
	}

	share = Share{Name: name, Path: path}
	if err := c.db.WithContext(ctx).Create(&share).Error; err != nil {
		return Share{}, false, err
	}
	return share, true, nil
}

func (c *Catalog) Shares(ctx context.Context) ([]Share, error) {
	var shares []Share
	err := c.db.WithContext(ctx).Order("name").Find(&shares).Error
	return shares, err
}

func (c *Catalog) RecordTransfer(ctx context.Context, name string, p peer.ID, direction Direction, size int64) error {
	return c.db.WithContext(ctx).Create(&Transfer{
		Name:      name,
		Peer:      p.String(),
		Direction: direction,
		Size:      size,
	}).Error
}

// Transfers lists transfers oldest first. An empty name lists all of them.
func (c *Catalog) Transfers(ctx context.Context, name string) ([]Transfer, error) {
	q := c.db.WithContext(ctx).Order("created_at, id")
	if name != "" {
		q = q.Where("name = ?", name)
	}

	var transfers []Transfer
	err := q.Find(&transfers).Error
	return transfers, err
}
