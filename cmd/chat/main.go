package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	awscognitoidentity "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	awscognitoidp "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/term"

	"agent-console/internal/domain"
	"agent-console/internal/integrations/bedrock"
	"agent-console/internal/integrations/cognito"
	"agent-console/internal/integrations/paramstore"
	"agent-console/internal/metrics"
	"agent-console/internal/repository"
	"agent-console/internal/tui"
	"agent-console/internal/usecase"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	feedbackTable := mustEnv("FEEDBACK_TABLE")
	maxQuestionLen := envInt("MAX_QUESTION_LENGTH", 2000)
	displayRationale := envBool("DISPLAY_RATIONALE", false)
	metricsAddr := os.Getenv("METRICS_ADDR")
	saveDir := os.Getenv("TRANSCRIPT_DIR")
	username := os.Getenv("COGNITO_USERNAME")

	mode, err := completionMode(os.Getenv("COMPLETION_MODE"))
	if err != nil {
		return err
	}
	persona, err := defaultPersona(os.Getenv("DEFAULT_PERSONA"))
	if err != nil {
		return err
	}

	// The terminal belongs to the UI, so logs go to a file or nowhere.
	logger, closeLog, err := newLogger(os.Getenv("LOG_FILE"))
	if err != nil {
		return err
	}
	defer closeLog()
	slog.SetDefault(logger)

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return fmt.Errorf("load AWS config: %w", err)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		return err
	}
	settings, err := ssmClient.LoadAgentSettings(ctx, paramPrefix)
	if err != nil {
		return err
	}
	agentClient, err := bedrock.New(awsbedrock.NewFromConfig(cfg), settings.AgentID, settings.AgentAliasID)
	if err != nil {
		return err
	}
	identityClient, err := cognito.New(
		awscognitoidp.NewFromConfig(cfg),
		awscognitoidentity.NewFromConfig(cfg, func(o *awscognitoidentity.Options) {
			o.Credentials = aws.AnonymousCredentials{}
		}),
		cognito.Config{
			Region:           cfg.Region,
			UserPoolID:       settings.UserPoolID,
			UserPoolClientID: settings.UserPoolClientID,
			IdentityPoolID:   settings.IdentityPoolID,
		},
	)
	if err != nil {
		return err
	}
	feedbackClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), feedbackTable)
	if err != nil {
		return err
	}

	// ---- Sign-in ----
	username, password, err := promptCredentials(username)
	if err != nil {
		return err
	}
	tokens, err := identityClient.SignIn(ctx, username, password)
	if err != nil {
		return fmt.Errorf("sign in: %w", err)
	}
	logger.Info("signed in", "user", username)

	// ---- Metrics ----
	opts := usecase.Options{Mode: mode, MaxQuestionLen: maxQuestionLen, Logger: logger}
	if metricsAddr != "" {
		m := metrics.New(prometheus.NewRegistry())
		opts.Recorder = m
		srv := serveMetrics(metricsAddr, m, logger)
		defer func() {
			shutdownCtx, stop := context.WithTimeout(context.Background(), 2*time.Second)
			defer stop()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	// ---- UI ----
	chatService, err := usecase.NewChatService(agentClient, feedbackClient, opts)
	if err != nil {
		return err
	}
	sess := usecase.NewSession(usecase.SessionOptions{Persona: persona, DisplayRationale: displayRationale})
	model, err := tui.New(tui.Config{
		Context:     ctx,
		Session:     sess,
		Chat:        chatService,
		Credentials: identityClient.SessionProvider(tokens),
		Logger:      logger,
		SaveDir:     saveDir,
	})
	if err != nil {
		return err
	}
	defer model.Close()

	if _, err := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion()).Run(); err != nil {
		return fmt.Errorf("run ui: %w", err)
	}
	return nil
}

func newLogger(path string) (*slog.Logger, func(), error) {
	if path == "" {
		return slog.New(slog.NewTextHandler(io.Discard, nil)), func() {}, nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return nil, nil, fmt.Errorf("open log file: %w", err)
	}
	return slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{Level: slog.LevelDebug})), func() { _ = f.Close() }, nil
}

func serveMetrics(addr string, m *metrics.Metrics, logger *slog.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server stopped", "addr", addr, "err", err)
		}
	}()
	logger.Info("serving metrics", "addr", addr)
	return srv
}

func promptCredentials(username string) (string, string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", "", errors.New("sign-in requires an interactive terminal")
	}
	if strings.TrimSpace(username) == "" {
		fmt.Fprint(os.Stderr, "Username: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil {
			return "", "", fmt.Errorf("read username: %w", err)
		}
		username = strings.TrimSpace(line)
	}
	fmt.Fprint(os.Stderr, "Password: ")
	pw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", "", fmt.Errorf("read password: %w", err)
	}
	return username, string(pw), nil
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		fmt.Fprintf(os.Stderr, "required environment variable %s is not set\n", key)
		os.Exit(1)
	}
	return v
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func completionMode(v string) (usecase.CompletionMode, error) {
	if strings.TrimSpace(v) == "" {
		return usecase.CompletionProgressive, nil
	}
	mode, ok := usecase.ParseCompletionMode(v)
	if !ok {
		return "", fmt.Errorf("invalid COMPLETION_MODE %q", v)
	}
	return mode, nil
}

func defaultPersona(v string) (domain.Persona, error) {
	if strings.TrimSpace(v) == "" {
		return usecase.DefaultPersona, nil
	}
	p, ok := usecase.ParsePersona(v)
	if !ok {
		return "", fmt.Errorf("invalid DEFAULT_PERSONA %q", v)
	}
	return p, nil
}
