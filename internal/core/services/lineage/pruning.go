package lineage

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/finetunelab/platform/internal/core/domain"
	apperrors "github.com/finetunelab/platform/internal/pkg/errors"
)

// RuleMatches reports whether a pruning rule's text occurs in the
// entry's rendered input. Matching is an exact substring test; rules
// are authored against the same plain-text rendering.
func RuleMatches(rule domain.PruningRule, entry *domain.DatasetEntry) bool {
	if rule.TextToMatch == "" {
		return false
	}
	return strings.Contains(entry.InputText(), rule.TextToMatch)
}

// RecomputeMatchesForEntry rebuilds the match set of one entry version
// against every pruning rule of its dataset. The set is replaced
// wholesale inside a transaction so readers never observe a partial set.
func (s *Service) RecomputeMatchesForEntry(ctx context.Context, entry *domain.DatasetEntry) error {
	var rules []domain.PruningRule
	if err := s.db.WithContext(ctx).
		Where("dataset_id = ?", entry.DatasetID).
		Find(&rules).Error; err != nil {
		return apperrors.DatabaseError(err)
	}

	matches := make([]domain.PruningRuleMatch, 0, len(rules))
	for _, rule := range rules {
		if RuleMatches(rule, entry) {
			matches = append(matches, domain.PruningRuleMatch{
				ID:             uuid.New(),
				PruningRuleID:  rule.ID,
				DatasetEntryID: entry.ID,
			})
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("dataset_entry_id = ?", entry.ID).
			Delete(&domain.PruningRuleMatch{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if len(matches) == 0 {
			return nil
		}
		if err := tx.Create(&matches).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		return nil
	})
}

// RecomputeMatchesForRule rebuilds one rule's match set against every
// live entry of its dataset. Used when a rule is created or its text
// changes.
func (s *Service) RecomputeMatchesForRule(ctx context.Context, rule domain.PruningRule) error {
	if rule.DatasetID == nil {
		return apperrors.BadRequest("pruning rule has no dataset")
	}

	var entries []domain.DatasetEntry
	if err := s.db.WithContext(ctx).
		Where("dataset_id = ? AND outdated = ?", *rule.DatasetID, false).
		Find(&entries).Error; err != nil {
		return apperrors.DatabaseError(err)
	}

	matches := make([]domain.PruningRuleMatch, 0)
	for i := range entries {
		if RuleMatches(rule, &entries[i]) {
			matches = append(matches, domain.PruningRuleMatch{
				ID:             uuid.New(),
				PruningRuleID:  rule.ID,
				DatasetEntryID: entries[i].ID,
			})
		}
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("pruning_rule_id = ?", rule.ID).
			Delete(&domain.PruningRuleMatch{}).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		if len(matches) == 0 {
			return nil
		}
		if err := tx.CreateInBatches(matches, 500).Error; err != nil {
			return apperrors.DatabaseError(err)
		}
		return nil
	})
}

// PrunedInputText strips every matching rule's text from an entry's
// rendered input, applying rules oldest-first so overlapping rules
// behave deterministically.
func PrunedInputText(entry *domain.DatasetEntry, rules []domain.PruningRule) string {
	text := entry.InputText()
	for _, rule := range rules {
		if rule.TextToMatch == "" {
			continue
		}
		text = strings.ReplaceAll(text, rule.TextToMatch, "")
	}
	return text
}
