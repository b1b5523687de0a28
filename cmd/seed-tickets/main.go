package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/proktor-id/proktor-backend/internal/config"
	"github.com/proktor-id/proktor-backend/internal/database"
	"github.com/proktor-id/proktor-backend/internal/logger"
	"github.com/proktor-id/proktor-backend/internal/model"
	"github.com/proktor-id/proktor-backend/internal/repository"
)

// codeAlphabet omits 0/O and 1/I so codes survive being read aloud.
const codeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func randomCode(n int) string {
	b := make([]byte, n)
	for i := range b {
		b[i] = codeAlphabet[rand.Intn(len(codeAlphabet))]
	}
	return string(b)
}

func main() {
	var count int
	var durationMinutes int
	flag.IntVar(&count, "count", 30, "Number of tickets to create")
	flag.IntVar(&durationMinutes, "duration", 30, "Exam duration in minutes")
	flag.Parse()

	cfg := config.Load()
	log := logger.Setup(cfg.LogLevel, cfg.LogFormat)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	pool, err := database.NewPostgresPool(ctx, cfg, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to PostgreSQL")
	}
	defer pool.Close()

	ticketRepo := repository.NewTicketRepository(pool)

	fmt.Printf("=== Seeding %d Tickets ===\n", count)

	// Reuse the demo bank if a previous run created it.
	var bankID string
	err = pool.QueryRow(ctx, "SELECT id FROM question_banks WHERE name = $1", "Demo Bank").Scan(&bankID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to look up demo bank")
		}
		bankID = uuid.New().String()
		if _, err := pool.Exec(ctx,
			"INSERT INTO question_banks (id, name) VALUES ($1, $2)", bankID, "Demo Bank"); err != nil {
			log.Fatal().Err(err).Msg("Failed to create demo bank")
		}
		fmt.Printf("Created question bank: %s\n", bankID)

		for i := 1; i <= 10; i++ {
			options, _ := json.Marshal([]string{"A", "B", "C", "D"})
			correct := string(codeAlphabet[i%4]) // A-D cycle
			if _, err := pool.Exec(ctx,
				`INSERT INTO questions (id, bank_id, prompt, question_type, options, correct_answer, order_num)
				 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.New().String(), bankID,
				fmt.Sprintf("Soal nomor %d", i), model.QuestionTypeSingleChoice,
				options, correct, i); err != nil {
				log.Fatal().Err(err).Msg("Failed to create question")
			}
		}
		fmt.Println("Created 10 demo questions")
	}

	var configID string
	err = pool.QueryRow(ctx,
		"SELECT id FROM exam_configs WHERE question_bank_id = $1 AND duration_minutes = $2",
		bankID, durationMinutes).Scan(&configID)
	if err != nil {
		if err != pgx.ErrNoRows {
			log.Fatal().Err(err).Msg("Failed to look up exam config")
		}
		configID = uuid.New().String()
		if _, err := pool.Exec(ctx,
			`INSERT INTO exam_configs (id, duration_minutes, question_bank_id, target_group, created_by)
			 VALUES ($1, $2, $3, $4, $5)`,
			configID, durationMinutes, bankID, "demo", "seed-tickets"); err != nil {
			log.Fatal().Err(err).Msg("Failed to create exam config")
		}
		fmt.Printf("Created exam config: %s (%d minutes)\n", configID, durationMinutes)
	}

	created := 0
	for created < count {
		ticket := &model.Ticket{
			Code:         randomCode(6),
			Status:       model.TicketStatusIssued,
			ExamConfigID: configID,
			StudentName:  fmt.Sprintf("Peserta %02d", created+1),
		}
		if err := ticketRepo.Create(ctx, ticket); err != nil {
			// Code collision is the only expected failure; roll again.
			log.Warn().Err(err).Str("code", ticket.Code).Msg("Insert failed, retrying with a new code")
			continue
		}
		fmt.Printf("  %s  %s\n", ticket.Code, ticket.StudentName)
		created++
	}

	fmt.Printf("=== Done: %d tickets ===\n", created)
}
