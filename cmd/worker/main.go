package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"tripsmith/internal/domain"
	"tripsmith/internal/infra"
	"tripsmith/internal/infra/credentials"
	"tripsmith/internal/providers/genai"
	"tripsmith/internal/providers/itinerary"
	"tripsmith/internal/sqlinline"
)

var errNoJobAvailable = errors.New("no job available")

type job struct {
	ID          string
	RequesterID string
	Request     domain.TripRequest
}

type jobWorker struct {
	ctx        context.Context
	runner     *infra.SQLRunner
	logger     infra.Logger
	generator  itinerary.Generator
	pollEvery  time.Duration
	stageDelay time.Duration
}

func main() {
	_ = godotenv.Load()

	cfg, err := infra.LoadConfig()
	if err != nil {
		panic(err)
	}
	logger := infra.NewLogger(cfg.AppEnv)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := infra.NewDBPool(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: db connection failed")
	}
	defer pool.Close()

	runner := infra.NewSQLRunner(pool, logger)

	geminiAPIKey := strings.TrimSpace(cfg.GeminiAPIKey)
	if geminiAPIKey == "" {
		credStore := credentials.NewStore(runner)
		keyFromStore, err := credStore.GeminiAPIKey(ctx)
		if err != nil {
			logger.Warn().Err(err).Msg("worker: failed to load gemini api key from store")
		} else {
			geminiAPIKey = keyFromStore
		}
	}

	geminiClient, err := genai.NewClient(genai.Options{
		APIKey:     geminiAPIKey,
		BaseURL:    cfg.GeminiBaseURL,
		Model:      cfg.GeminiModel,
		HTTPClient: &http.Client{Timeout: 60 * time.Second},
		Logger:     &logger,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("worker: failed to configure gemini client")
	}
	if geminiAPIKey == "" {
		logger.Warn().Str("model", geminiClient.Model()).Msg("worker: gemini api key missing, composing synthetic itineraries")
	}

	worker := &jobWorker{
		ctx:        ctx,
		runner:     runner,
		logger:     logger,
		generator:  itinerary.NewGeminiGenerator(geminiClient, logger),
		pollEvery:  cfg.WorkerPollInterval,
		stageDelay: cfg.WorkerStageDelay,
	}

	if err := worker.Run(); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal().Err(err).Msg("worker: stopped with error")
	}
	logger.Info().Msg("worker: stopped")
}

func (w *jobWorker) Run() error {
	w.logger.Info().Msg("worker: started")
	for {
		select {
		case <-w.ctx.Done():
			return w.ctx.Err()
		default:
		}

		j, err := w.claimJob()
		if err != nil {
			if errors.Is(err, errNoJobAvailable) {
				time.Sleep(w.pollEvery)
				continue
			}
			w.logger.Error().Err(err).Msg("worker: failed to claim job")
			time.Sleep(w.pollEvery)
			continue
		}

		w.handleJob(j)
	}
}

func (w *jobWorker) claimJob() (job, error) {
	row := w.runner.QueryRow(w.ctx, sqlinline.QClaimJob)
	var (
		j       job
		reqJSON json.RawMessage
	)
	if err := row.Scan(&j.ID, &j.RequesterID, &reqJSON); err != nil {
		if infra.IsNoRows(err) {
			return job{}, errNoJobAvailable
		}
		return job{}, err
	}
	if err := json.Unmarshal(reqJSON, &j.Request); err != nil {
		return job{}, err
	}
	return j, nil
}

func (w *jobWorker) handleJob(j job) {
	w.logger.Info().Str("job_id", j.ID).Str("destination", j.Request.Destination).Msg("worker: picked job")
	if err := w.generate(j); err != nil {
		w.logger.Error().Err(err).Str("job_id", j.ID).Msg("worker: job failed")
		w.failJob(j.ID, err)
		return
	}
	w.logger.Info().Str("job_id", j.ID).Msg("worker: job completed")
}

// generate walks the job through every stage, persisting and notifying after
// each write so live subscribers see a monotonic stage sequence.
func (w *jobWorker) generate(j job) error {
	var response json.RawMessage
	for idx, name := range domain.StageNames {
		stage := idx + 1
		if err := w.writeProgress(j.ID, stage, name); err != nil {
			return err
		}
		// The model call happens at the penultimate stage; the final stage is
		// the completion write itself.
		if stage == domain.TotalStages-1 {
			doc, err := w.generator.Generate(w.ctx, j.Request)
			if err != nil {
				return err
			}
			response = doc
		} else if w.stageDelay > 0 {
			select {
			case <-w.ctx.Done():
				return w.ctx.Err()
			case <-time.After(w.stageDelay):
			}
		}
	}
	return w.completeJob(j.ID, response)
}

func (w *jobWorker) writeProgress(jobID string, stage int, message string) error {
	if _, err := w.runner.Exec(w.ctx, sqlinline.QUpdateJobProgress, jobID, stage, message); err != nil {
		return err
	}
	w.notify(jobID)
	return nil
}

func (w *jobWorker) completeJob(jobID string, response json.RawMessage) error {
	if _, err := w.runner.Exec(w.ctx, sqlinline.QCompleteJob, jobID, response, "Itinerary ready"); err != nil {
		return err
	}
	w.notify(jobID)
	return nil
}

func (w *jobWorker) failJob(jobID string, cause error) {
	// Terminal writes must land even when the claim context is gone.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := w.runner.Exec(ctx, sqlinline.QFailJob, jobID, cause.Error()); err != nil {
		w.logger.Error().Err(err).Str("job_id", jobID).Msg("worker: failed to record job failure")
		return
	}
	if _, err := w.runner.Exec(ctx, sqlinline.QNotifyJob, jobID); err != nil {
		w.logger.Warn().Err(err).Str("job_id", jobID).Msg("worker: notify failed")
	}
}

func (w *jobWorker) notify(jobID string) {
	if _, err := w.runner.Exec(w.ctx, sqlinline.QNotifyJob, jobID); err != nil {
		w.logger.Warn().Err(err).Str("job_id", jobID).Msg("worker: notify failed")
	}
}
