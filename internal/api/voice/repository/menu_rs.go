package voiceRepository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"eatech-voice/internal/api/voice"
	"eatech-voice/internal/entity"
	contextPkg "eatech-voice/pkg/context"

	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
)

type MenuItemDB struct {
	ID           sql.NullString  `db:"id"`
	RestaurantID sql.NullString  `db:"restaurant_id"`
	Name         sql.NullString  `db:"name"`
	Language     sql.NullString  `db:"language"`
	Price        sql.NullFloat64 `db:"price"`
	Currency     sql.NullString  `db:"currency"`
	Available    sql.NullBool    `db:"available"`
	UpdatedAt    time.Time       `db:"updated_at"`
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// FindMenuItem looks up an available item by name, preferring the exact
// language over its base language and the shortest matching name.
func (r *menuRepository) FindMenuItem(ctx context.Context, restaurantID, name, language string) (entity.MenuItem, error) {
	requestID := contextPkg.GetRequestID(ctx)
	var itemDB MenuItemDB

	base, _, _ := strings.Cut(language, "-")
	argsKV := map[string]interface{}{
		"restaurant_id": restaurantID,
		"name":          "%" + likeEscaper.Replace(strings.TrimSpace(name)) + "%",
		"language":      language,
		"base_language": base,
	}

	query, args, err := sqlx.Named(queryFindMenuItem, argsKV)
	if err != nil {
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FindMenuItem named query preparation err")
		return entity.MenuItem{}, err
	}
	query = r.q.Rebind(query)

	if err := r.q.QueryRowxContext(ctx, query, args...).StructScan(&itemDB); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			r.log.WithFields(logrus.Fields{
				"request_id": requestID,
				"item":       name,
			}).Debug("FindMenuItem no rows found")
			return entity.MenuItem{}, voice.ErrMenuItemNotFound
		}
		r.log.WithFields(logrus.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Error("FindMenuItem execution err")
		return entity.MenuItem{}, err
	}

	return entity.MenuItem{
		ID:           itemDB.ID.String,
		RestaurantID: itemDB.RestaurantID.String,
		Name:         itemDB.Name.String,
		Language:     itemDB.Language.String,
		Price:        itemDB.Price.Float64,
		Currency:     itemDB.Currency.String,
		Available:    itemDB.Available.Bool,
		UpdatedAt:    itemDB.UpdatedAt,
	}, nil
}
