package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"quizmint-service/internal/app"
	"quizmint-service/internal/artwork"
	"quizmint-service/internal/config"
	ethinfra "quizmint-service/internal/infra/eth"
	"quizmint-service/internal/infra/memory"
	pginfra "quizmint-service/internal/infra/postgres"
	redisinfra "quizmint-service/internal/infra/redis"
	transport "quizmint-service/internal/transport/http"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the quiz mint server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	// Without a signing key no authorization would ever verify on-chain.
	signer, err := app.NewSigner(os.Getenv("SIGNER_PRIVATE_KEY"))
	if err != nil {
		return fmt.Errorf("load signing key: %w", err)
	}
	log.Printf("mint authorizations will be signed by %s", signer.Address().Hex())

	if cfg.Chain.RPCURL == "" {
		return fmt.Errorf("chain rpc url not configured")
	}
	if !common.IsHexAddress(cfg.Chain.QuizNFTAddr) || !common.IsHexAddress(cfg.Chain.CreatorNFTAddr) {
		return fmt.Errorf("quiz/creator NFT contract addresses not configured")
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	chainClient, err := ethinfra.Dial(ctx, cfg.Chain.RPCURL, config.Duration(cfg.Chain.RPCTimeout, 15*time.Second))
	if err != nil {
		return err
	}
	defer chainClient.Close()

	var (
		quizzes     app.QuizRepository
		attempts    app.SubmissionRepository
		credentials app.CredentialRepository
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		quizzes = pginfra.NewQuizRepository(pool)
		attempts = pginfra.NewSubmissionRepository(pool)
		credentials = pginfra.NewCredentialRepository(pool)
	} else {
		log.Printf("postgres not configured, using in-memory stores")
		quizzes = memory.NewQuizRepository(nil)
		attempts = memory.NewSubmissionRepository()
		credentials = memory.NewCredentialRepository()
	}

	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		quizzes = redisinfra.NewQuizRepository(redisClient, quizzes, config.Duration(cfg.Quiz.TTL, 10*time.Minute))
	}

	var assets *artwork.AssetSet
	if cfg.Artwork.AssetsDir != "" {
		assets, err = artwork.LoadAssets(cfg.Artwork.AssetsDir)
		if err != nil {
			return err
		}
	}

	confirmer := app.NewTransactionConfirmer(
		chainClient,
		cfg.Chain.ConfirmAttempts,
		config.Duration(cfg.Chain.ConfirmInterval, 10*time.Second),
	)

	service := app.NewMintService(app.MintServiceDeps{
		Quizzes:     quizzes,
		Attempts:    attempts,
		Credentials: credentials,
		Chain:       chainClient,
		Signer:      signer,
		Gate:        app.NewSubmissionGate(attempts),
		Confirmer:   confirmer,
		Generator:   artwork.NewGenerator(assets),
		Rarity:      app.NewRarityDrawer(),
		QuizNFT:     common.HexToAddress(cfg.Chain.QuizNFTAddr),
		CreatorNFT:  common.HexToAddress(cfg.Chain.CreatorNFTAddr),
		MetadataURL: cfg.Metadata.BaseURL,
	})

	handler := transport.NewHandler(service)
	wsHandler := transport.NewWSHandler(service)

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})
	handler.Register(mux)
	mux.HandleFunc("/ws/mint", wsHandler.ServeMint)

	server := &http.Server{
		Addr:         ":" + finalPort,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second, // record-mint can poll for minutes
	}

	go func() {
		log.Printf("starting quizmint service on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("failed to start server: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Println("shutting down server...")
	case <-ctx.Done():
		log.Println("context canceled, shutting down server...")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
