// ./internal/state/parameters_store.go
package state

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/creditlens/wcs/internal/types"
	"github.com/rs/zerolog/log"
)

// SaveScoringParameters persists a parameter set and marks it active for its
// config name. The previously active row is deactivated in the same
// transaction so exactly one row per config name is active at any time.
func SaveScoringParameters(params types.ScoringParameters, configName string) (int, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialized")
	}

	blob, err := json.Marshal(params)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal scoring parameters: %w", err)
	}

	tx, err := DB.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	_, err = tx.Exec(
		`UPDATE scoring_parameters SET is_active = FALSE WHERE config_name = $1 AND is_active = TRUE`,
		configName,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to deactivate previous parameters: %w", err)
	}

	var paramsID int
	err = tx.QueryRow(
		`INSERT INTO scoring_parameters (config_name, is_active, parameters)
		 VALUES ($1, TRUE, $2)
		 RETURNING params_id`,
		configName, blob,
	).Scan(&paramsID)
	if err != nil {
		return 0, fmt.Errorf("failed to insert scoring parameters: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scoring parameters: %w", err)
	}

	log.Info().Int("params_id", paramsID).Str("config_name", configName).
		Msg("Saved active scoring parameters")
	return paramsID, nil
}

// LoadActiveScoringParameters fetches the active parameter set for configName.
// Returns sql.ErrNoRows when no active row exists so the caller can fall back
// to compiled defaults.
func LoadActiveScoringParameters(configName string) (types.ScoringParameters, error) {
	var params types.ScoringParameters
	if DB == nil {
		return params, fmt.Errorf("database not initialized")
	}

	var blob []byte
	err := DB.QueryRow(
		`SELECT parameters FROM scoring_parameters
		 WHERE config_name = $1 AND is_active = TRUE
		 ORDER BY activated_at DESC LIMIT 1`,
		configName,
	).Scan(&blob)
	if err != nil {
		if err == sql.ErrNoRows {
			return params, sql.ErrNoRows
		}
		return params, fmt.Errorf("failed to load scoring parameters: %w", err)
	}

	if err := json.Unmarshal(blob, &params); err != nil {
		return params, fmt.Errorf("failed to unmarshal scoring parameters: %w", err)
	}
	return params, nil
}
