package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"quizmint-service/internal/app"
	"quizmint-service/internal/artwork"
	"quizmint-service/internal/domain"
	"quizmint-service/internal/infra/postgres"
	"quizmint-service/internal/infra/postgres/migrations"
	infraredis "quizmint-service/internal/infra/redis"
)

const signerKey = "59c6995e998f97a5a0044966f0945389dc9e86dae88c7a8412f4603b6b78690d"

type stubChain struct {
	nonce   *big.Int
	misses  int
	calls   int
	receipt *types.Receipt
}

func (c *stubChain) MintNonce(_ context.Context, _, _ common.Address) (*big.Int, error) {
	return c.nonce, nil
}

func (c *stubChain) TransactionReceipt(_ context.Context, _ common.Hash) (*types.Receipt, error) {
	c.calls++
	if c.calls <= c.misses {
		return nil, ethereum.NotFound
	}
	return c.receipt, nil
}

func TestMintPipelineEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	runMigrations(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	chain := &stubChain{
		nonce:  big.NewInt(3),
		misses: 2,
		receipt: &types.Receipt{
			Status: types.ReceiptStatusSuccessful,
			Logs: []*types.Log{
				{Topics: []common.Hash{
					app.TransferEvent.ID,
					{}, {},
					common.BigToHash(big.NewInt(42)),
				}},
			},
		},
	}

	signer, err := app.NewSigner(signerKey)
	if err != nil {
		t.Fatalf("new signer: %v", err)
	}
	attempts := postgres.NewSubmissionRepository(pool)
	service := app.NewMintService(app.MintServiceDeps{
		Quizzes:     infraredis.NewQuizRepository(redisClient, postgres.NewQuizRepository(pool), 5*time.Minute),
		Attempts:    attempts,
		Credentials: postgres.NewCredentialRepository(pool),
		Chain:       chain,
		Signer:      signer,
		Gate:        app.NewSubmissionGate(attempts),
		Confirmer:   app.NewTransactionConfirmer(chain, 5, 10*time.Millisecond),
		Generator:   artwork.NewGenerator(nil),
		Rarity:      app.NewRarityDrawerWithRoll(func() float64 { return 0.5 }),
		QuizNFT:     common.HexToAddress("0x33B66e43f6f3CCd8C433c2F9D4159bdB3ce49d77"),
		CreatorNFT:  common.HexToAddress("0xf7d547b46F331229D4FeA41d85c6561DA5288678"),
		MetadataURL: "http://localhost:8080",
	})

	playerKey, err := crypto.HexToECDSA("ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff80")
	if err != nil {
		t.Fatalf("parse player key: %v", err)
	}
	wallet := crypto.PubkeyToAddress(playerKey.PublicKey).Hex()

	quiz, err := service.SaveQuiz(ctx, domain.Quiz{
		Name:          "integration",
		CreatorWallet: wallet,
		Questions: []domain.Question{
			{Prompt: "pick a", Choices: []string{"a", "b", "c", "d"}, CorrectAnswer: 0},
			{Prompt: "pick b", Choices: []string{"a", "b", "c", "d"}, CorrectAnswer: 1},
		},
	})
	if err != nil {
		t.Fatalf("save quiz: %v", err)
	}

	message := "Sign to submit quiz " + quiz.ID
	sig, err := crypto.Sign(accounts.TextHash([]byte(message)), playerKey)
	if err != nil {
		t.Fatalf("sign message: %v", err)
	}
	sig[64] += 27

	// Perfect submission goes through the full gate and serializable insert.
	_, err = service.SubmitAttempt(ctx, app.SubmitAttemptRequest{
		QuizID:        quiz.ID,
		WalletAddress: wallet,
		Answers:       []int{0, 1},
		Score:         2,
		Signature:     hexutil.Encode(sig),
		Message:       message,
	})
	if err != nil {
		t.Fatalf("submit attempt: %v", err)
	}

	// Retry inside the window is rejected against the persisted history.
	_, err = service.SubmitAttempt(ctx, app.SubmitAttemptRequest{
		QuizID:        quiz.ID,
		WalletAddress: wallet,
		Answers:       []int{0, 0},
		Score:         1,
		Signature:     hexutil.Encode(sig),
		Message:       message,
	})
	if !errors.Is(err, domain.ErrAttemptWindow) {
		t.Fatalf("window retry: got %v, want ErrAttemptWindow", err)
	}

	auth, err := service.AuthorizeMint(ctx, wallet, quiz.ID)
	if err != nil {
		t.Fatalf("authorize mint: %v", err)
	}
	if auth.Nonce != "3" || auth.Signature == "" {
		t.Fatalf("unexpected authorization %+v", auth)
	}

	credential, err := service.RecordMint(ctx, app.RecordMintRequest{
		TxHash:        "0xabc",
		QuizID:        quiz.ID,
		WalletAddress: wallet,
		Timestamp:     "1717243200",
	}, nil)
	if err != nil {
		t.Fatalf("record mint: %v", err)
	}
	if credential.TokenID != "42" {
		t.Fatalf("token id %s, want 42", credential.TokenID)
	}

	// The replayed record call must serve the stored credential, not redraw.
	chain.calls = 0
	chain.misses = 0
	replayed, err := service.RecordMint(ctx, app.RecordMintRequest{
		TxHash:        "0xabc",
		QuizID:        quiz.ID,
		WalletAddress: wallet,
		Timestamp:     "1717243200",
	}, nil)
	if err != nil {
		t.Fatalf("record mint replay: %v", err)
	}
	if replayed.Rarity != credential.Rarity || replayed.CreatedAt.IsZero() {
		t.Fatalf("replay regenerated the credential: %+v vs %+v", replayed, credential)
	}

	doc, err := service.Metadata(ctx, domain.CredentialKindQuiz, "42")
	if err != nil {
		t.Fatalf("metadata: %v", err)
	}
	if doc.Image != "http://localhost:8080/metadata/img/42" {
		t.Fatalf("metadata image %s", doc.Image)
	}

	completers, err := service.Completers(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("completers: %v", err)
	}
	if len(completers) != 1 || completers[0] != wallet {
		t.Fatalf("completers %v, want [%s]", completers, wallet)
	}
}

func runMigrations(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, migrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	}), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
