package storage

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/sgmartin/ltdbot/internal/domain"
)

// scanMatches reads rows selected with matchCols into MatchRecords.
func scanMatches(rows *sql.Rows) ([]domain.MatchRecord, error) {
	var recs []domain.MatchRecord
	for rows.Next() {
		var (
			rec                        domain.MatchRecord
			kickoff                    sql.NullString
			status                     string
			elapsed                    sql.NullInt64
			hScore, aScore, hRed, aRed sql.NullInt64
			hBack, aBack, dBack        sql.NullFloat64
			hLay, aLay, dLay           sql.NullFloat64
			hSP, aSP, dSP              sql.NullFloat64
			fav, result                sql.NullInt64
			goals                      [12]sql.NullInt64
			pnl                        sql.NullFloat64
			e1                         entryRow
			e2                         entryRow
		)

		if err := rows.Scan(
			&rec.EventID, &rec.EventName, &rec.Comp, &rec.MarketID, &kickoff, &rec.BotVersion,
			&status, &elapsed, &hScore, &aScore, &hRed, &aRed,
			&hBack, &aBack, &dBack, &hLay, &aLay, &dLay, &rec.MarketState,
			&hSP, &aSP, &dSP, &fav,
			&goals[0], &goals[1], &goals[2], &goals[3], &goals[4], &goals[5],
			&goals[6], &goals[7], &goals[8], &goals[9], &goals[10], &goals[11],
			&rec.FTScore, &result, &rec.Strategy, &pnl,
			&e1.price, &e1.stake, &e1.matched, &e1.remaining, &e1.status, &e1.betID, &e1.placedAt,
			&e2.price, &e2.stake, &e2.matched, &e2.remaining, &e2.status, &e2.betID, &e2.placedAt,
			&rec.Order.Liability,
		); err != nil {
			return nil, fmt.Errorf("storage: scan match row: %w", err)
		}

		rec.Kickoff = timePtr(kickoff)
		rec.InplayStatus = domain.InplayStatus(status)
		rec.TimeElapsed = intPtr(elapsed)
		rec.HScore, rec.AScore = intPtr(hScore), intPtr(aScore)
		rec.HRedCards, rec.ARedCards = intPtr(hRed), intPtr(aRed)
		rec.HBack, rec.ABack, rec.DBack = floatPtr(hBack), floatPtr(aBack), floatPtr(dBack)
		rec.HLay, rec.ALay, rec.DLay = floatPtr(hLay), floatPtr(aLay), floatPtr(dLay)
		rec.HSP, rec.ASP, rec.DSP = floatPtr(hSP), floatPtr(aSP), floatPtr(dSP)
		rec.Fav = intPtr(fav)
		for i := range domain.Bands {
			rec.Goals[i] = domain.BandScore{H: intPtr(goals[i*2]), A: intPtr(goals[i*2+1])}
		}
		rec.Result = intPtr(result)
		rec.PnL = floatPtr(pnl)
		rec.Order.Entry1 = e1.entry()
		rec.Order.Entry2 = e2.entry()

		recs = append(recs, rec)
	}
	return recs, rows.Err()
}

// entryRow is the nullable column set of one order entry. An entry exists
// iff its placed_at is set.
type entryRow struct {
	price, stake, matched, remaining sql.NullFloat64
	status, betID                    sql.NullString
	placedAt                         sql.NullString
}

func (e entryRow) entry() *domain.Entry {
	at := timePtr(e.placedAt)
	if at == nil {
		return nil
	}
	return &domain.Entry{
		Price:     e.price.Float64,
		Stake:     e.stake.Float64,
		Matched:   e.matched.Float64,
		Remaining: e.remaining.Float64,
		Status:    e.status.String,
		BetID:     e.betID.String,
		PlacedAt:  *at,
	}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func floatPtr(n sql.NullFloat64) *float64 {
	if !n.Valid {
		return nil
	}
	v := n.Float64
	return &v
}

func timePtr(n sql.NullString) *time.Time {
	if !n.Valid || n.String == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, n.String); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
