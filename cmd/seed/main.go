package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/citadental/clinic-booking/internal/booking"
	"github.com/citadental/clinic-booking/internal/config"
	"github.com/citadental/clinic-booking/internal/db"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	doctorCount := flag.Int("doctors", 8, "number of doctors to create")
	patientCount := flag.Int("patients", 500, "number of patients to create")
	horizonDays := flag.Int("horizon", 14, "days of schedule to generate per doctor")
	flag.Parse()

	log.Println("seed starting")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	gofakeit.Seed(time.Now().UnixNano())

	doctorIDs, err := seedDoctors(context.Background(), pool, *doctorCount)
	if err != nil {
		log.Fatalf("seed doctors: %v", err)
	}
	if err := seedPatients(context.Background(), pool, *patientCount); err != nil {
		log.Fatalf("seed patients: %v", err)
	}
	if err := seedSchedules(context.Background(), pool, cfg, doctorIDs, *horizonDays); err != nil {
		log.Fatalf("seed schedules: %v", err)
	}

	log.Println("seed complete")
}

func seedDoctors(ctx context.Context, pool *pgxpool.Pool, count int) ([]uuid.UUID, error) {
	log.Printf("seeding %d doctors", count)

	specialties := []string{
		"General Dentistry",
		"Orthodontics",
		"Endodontics",
		"Periodontics",
		"Oral Surgery",
		"Pediatric Dentistry",
		"Prosthodontics",
	}

	tx, err := pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	ids := make([]uuid.UUID, 0, count)
	for i := 0; i < count; i++ {
		id := uuid.New()
		name := "Dr. " + gofakeit.Name()
		spec := specialties[gofakeit.Number(0, len(specialties)-1)]
		phone := gofakeit.Phone()

		_, err := tx.Exec(ctx, `
			INSERT INTO doctors (id, name, phone, specialty, created_at, updated_at)
			VALUES ($1, $2, $3, $4, now(), now())
		`, id, name, phone, spec)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	log.Println("doctors seeded")
	return ids, nil
}

func seedPatients(ctx context.Context, pool *pgxpool.Pool, count int) error {
	log.Printf("seeding %d patients", count)

	const batchSize = 500

	for offset := 0; offset < count; offset += batchSize {
		end := offset + batchSize
		if end > count {
			end = count
		}

		tx, err := pool.Begin(ctx)
		if err != nil {
			return err
		}

		for i := offset; i < end; i++ {
			id := uuid.New()
			name := gofakeit.Name()
			email := gofakeit.Email()
			phone := gofakeit.Phone()

			_, err := tx.Exec(ctx, `
				INSERT INTO patients (id, name, phone, email, created_at, updated_at)
				VALUES ($1, $2, $3, $4, now(), now())
			`, id, name, phone, email)
			if err != nil {
				_ = tx.Rollback(ctx)
				return err
			}
		}

		if err := tx.Commit(ctx); err != nil {
			return err
		}

		log.Printf("patients seeded: %d/%d", end, count)
	}

	log.Println("patients seeded")
	return nil
}

func seedSchedules(ctx context.Context, pool *pgxpool.Pool, cfg config.Config, doctorIDs []uuid.UUID, horizonDays int) error {
	log.Printf("generating %d days of slots for %d doctors", horizonDays, len(doctorIDs))

	repo := booking.NewPgRepository(pool)
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	svc := booking.NewService(repo, nil, nil, booking.Config{
		HoldTTL:             cfg.HoldTTL,
		SlotDurationMinutes: cfg.SlotDuration,
		HorizonDays:         horizonDays,
		Location:            cfg.Timezone,
	}, logger)

	template := booking.WeeklyTemplate{
		{Day: "monday", Enabled: true, StartTime: "09:00", EndTime: "18:00"},
		{Day: "tuesday", Enabled: true, StartTime: "09:00", EndTime: "18:00"},
		{Day: "wednesday", Enabled: true, StartTime: "09:00", EndTime: "18:00"},
		{Day: "thursday", Enabled: true, StartTime: "09:00", EndTime: "18:00"},
		{Day: "friday", Enabled: true, StartTime: "09:00", EndTime: "18:00"},
		{Day: "saturday", Enabled: true, StartTime: "09:00", EndTime: "14:00"},
		{Day: "sunday", Enabled: false},
	}

	total := 0
	for _, doctorID := range doctorIDs {
		created, err := svc.GenerateSlots(ctx, doctorID, template, booking.GenerateOptions{
			HorizonDays: horizonDays,
		})
		if err != nil {
			return err
		}
		total += created
	}

	log.Printf("slots generated: %d", total)
	return nil
}
