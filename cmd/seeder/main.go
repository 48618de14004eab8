package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/charmbracelet/log"
	"github.com/mauv0809/clubledger/internal/apperr"
	"github.com/mauv0809/clubledger/internal/booking"
	"github.com/mauv0809/clubledger/internal/catalog"
	"github.com/mauv0809/clubledger/internal/config"
	"github.com/mauv0809/clubledger/internal/database"
	"github.com/mauv0809/clubledger/internal/identity"
	"github.com/mauv0809/clubledger/internal/ledger"
	"github.com/mauv0809/clubledger/internal/metrics"
	"github.com/mauv0809/clubledger/internal/tournament"
	"github.com/shopspring/decimal"
)

const (
	numMembers  = 40
	numBookings = 300
	numEntrants = 8
)

var seeder = identity.Principal{MemberID: "seeder", Roles: []identity.Role{identity.RoleAdmin}}

var courts = []catalog.Court{
	{Name: "Court 1", PricePerHour: decimal.NewFromInt(80_000), IsActive: true},
	{Name: "Court 2", PricePerHour: decimal.NewFromInt(80_000), IsActive: true},
	{Name: "Center Court", Description: "Glass walls, stands", PricePerHour: decimal.NewFromInt(120_000), IsActive: true},
	{Name: "Court 4", Description: "Closed for resurfacing", PricePerHour: decimal.NewFromInt(60_000)},
}

// Seeds go through the services so every balance is backed by ledger entries.
func main() {
	log.Info("Starting database seeder...")
	cfg := config.Load()
	db, teardown, err := database.InitDB(cfg.DBName, cfg.Turso.PrimaryURL, cfg.Turso.AuthToken, cfg.MigrationsDir)
	if err != nil {
		log.Fatalf("Failed to initialize database: %s", err)
	}
	defer teardown()

	ctx := context.Background()
	metricsSvc := metrics.NewService()
	ledgerSvc := ledger.New(db, metricsSvc)
	catalogSvc := catalog.New(db)
	bookings := booking.New(db, ledgerSvc, catalogSvc, nil, metricsSvc)
	tournaments := tournament.New(db, ledgerSvc, nil, metricsSvc)

	var courtIDs []string
	for _, c := range courts {
		saved, err := catalogSvc.Upsert(ctx, c)
		if err != nil {
			log.Fatalf("Failed to insert court %s: %s", c.Name, err)
		}
		if saved.IsActive {
			courtIDs = append(courtIDs, saved.ID)
		}
	}
	log.Info("Ensured courts exist.", "active", len(courtIDs))

	members := make([]*ledger.Member, 0, numMembers)
	for i := range numMembers {
		m, err := ledgerSvc.CreateMember(ctx, fmt.Sprintf("Seeder Player %02d", i+1), "", 1+rand.Float64()*5)
		if err != nil {
			log.Fatalf("Failed to insert member: %s", err)
		}
		// Spread deposits across all tiers.
		amount := decimal.NewFromInt(int64(rand.IntN(12_000)) * 1_000)
		if amount.IsPositive() {
			entry, err := ledgerSvc.RequestDeposit(ctx, m.ID, amount)
			if err != nil {
				log.Fatalf("Failed to request deposit: %s", err)
			}
			if _, err := ledgerSvc.Approve(ctx, seeder, entry.ID); err != nil {
				log.Fatalf("Failed to approve deposit: %s", err)
			}
		}
		members = append(members, m)
	}
	log.Info("Inserted members.", "total", len(members))

	log.Info("Preparing to insert bookings...", "total", numBookings)
	startTime := time.Now()
	day := time.Now().UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	booked, skipped := 0, 0
	for range numBookings {
		start := day.Add(time.Duration(rand.IntN(14*24)) * time.Hour)
		if h := start.Hour(); h < 7 || h > 21 {
			skipped++
			continue
		}
		member := members[rand.IntN(len(members))]
		_, err := bookings.CreateDirect(ctx, courtIDs[rand.IntN(len(courtIDs))], member.ID, start, start.Add(time.Hour))
		switch {
		case err == nil:
			booked++
		case errors.Is(err, apperr.ErrResourceUnavailable), errors.Is(err, apperr.ErrInsufficientFunds):
			skipped++
		default:
			log.Fatalf("Failed to insert booking: %s", err)
		}
	}
	log.Info("Inserted bookings.", "booked", booked, "skipped", skipped, "duration", time.Since(startTime))

	t, err := tournaments.Create(ctx, seeder, tournament.Tournament{
		Name:     "Seeded Open",
		Format:   tournament.FormatKnockout,
		EntryFee: decimal.NewFromInt(10_000),
	})
	if err != nil {
		log.Fatalf("Failed to create tournament: %s", err)
	}
	joined := 0
	for _, m := range members {
		if joined == numEntrants {
			break
		}
		if _, err := tournaments.Join(ctx, t.ID, m.ID, ""); err != nil {
			log.Warn("Skipped entrant", "member", m.Name, "error", err)
			continue
		}
		joined++
	}
	schedule, err := tournaments.GenerateSchedule(ctx, seeder, t.ID)
	if err != nil {
		log.Fatalf("Failed to generate schedule: %s", err)
	}
	log.Info("Seeded tournament.", "id", t.ID, "entrants", joined, "matches", len(schedule.Matches))
}
