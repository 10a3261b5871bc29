package database

import (
	"github.com/tallybot/tally/internal/database/models"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
)

// Repository provides access to all database models.
type Repository struct {
	ledger  *models.LedgerModel
	guild   *models.GuildModel
	config  *models.ConfigModel
	binding *models.BindingModel
}

// NewRepository creates a new repository instance with all models.
func NewRepository(db *bun.DB, logger *zap.Logger) *Repository {
	return &Repository{
		ledger:  models.NewLedger(db, logger),
		guild:   models.NewGuild(db, logger),
		config:  models.NewConfig(db, logger),
		binding: models.NewBinding(db, logger),
	}
}

// Ledger returns the score ledger model repository.
func (r *Repository) Ledger() *models.LedgerModel {
	return r.ledger
}

// Guild returns the guild registry model repository.
func (r *Repository) Guild() *models.GuildModel {
	return r.guild
}

// Config returns the guild configuration model repository.
func (r *Repository) Config() *models.ConfigModel {
	return r.config
}

// Binding returns the reaction-role binding model repository.
func (r *Repository) Binding() *models.BindingModel {
	return r.binding
}
