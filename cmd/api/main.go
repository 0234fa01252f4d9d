package main

import (
	"context"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	awsbedrock "github.com/aws/aws-sdk-go-v2/service/bedrockagentruntime"
	awscognitoidentity "github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	awscognitoidp "github.com/aws/aws-sdk-go-v2/service/cognitoidentityprovider"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awsssm "github.com/aws/aws-sdk-go-v2/service/ssm"

	"agent-console/handler"
	"agent-console/internal/domain"
	"agent-console/internal/integrations/bedrock"
	"agent-console/internal/integrations/cognito"
	"agent-console/internal/integrations/paramstore"
	"agent-console/internal/repository"
	"agent-console/internal/usecase"
)

func main() {
	ctx := context.Background()
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	// ---- Configuration (read only here) ----
	paramPrefix := mustEnv("PARAM_PREFIX")
	feedbackTable := mustEnv("FEEDBACK_TABLE")
	maxQuestionLen := envInt("MAX_QUESTION_LENGTH", 2000)
	sessionIdle := time.Duration(envInt("SESSION_IDLE_MINUTES", 60)) * time.Minute
	mode := completionMode(os.Getenv("COMPLETION_MODE"))
	persona := defaultPersona(os.Getenv("DEFAULT_PERSONA"))

	// ---- AWS SDK config ----
	cfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		slog.Error("failed to load AWS config", "err", err)
		os.Exit(1)
	}

	// ---- Clients ----
	ssmClient, err := paramstore.New(awsssm.NewFromConfig(cfg))
	if err != nil {
		slog.Error("failed to create SSM client", "err", err)
		os.Exit(1)
	}
	settings, err := ssmClient.LoadAgentSettings(ctx, paramPrefix)
	if err != nil {
		slog.Error("failed to load agent settings", "err", err)
		os.Exit(1)
	}

	agentClient, err := bedrock.New(awsbedrock.NewFromConfig(cfg), settings.AgentID, settings.AgentAliasID)
	if err != nil {
		slog.Error("failed to create agent client", "err", err)
		os.Exit(1)
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
		slog.Error("failed to create identity client", "err", err)
		os.Exit(1)
	}
	feedbackClient, err := repository.New(awsdynamodb.NewFromConfig(cfg), feedbackTable)
	if err != nil {
		slog.Error("failed to create feedback client", "err", err)
		os.Exit(1)
	}

	// ---- Handler ----
	chatService, err := usecase.NewChatService(agentClient, feedbackClient, usecase.Options{
		Mode:           mode,
		MaxQuestionLen: maxQuestionLen,
		Logger:         logger,
	})
	if err != nil {
		slog.Error("failed to create chat service", "err", err)
		os.Exit(1)
	}
	sessions := usecase.NewRegistry(usecase.SessionOptions{Persona: persona}, sessionIdle)

	h, err := handler.NewHandler(chatService, sessions, identityClient, logger)
	if err != nil {
		slog.Error("failed to create handler", "err", err)
		os.Exit(1)
	}

	lambda.Start(h.Handle)
}

func mustEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		slog.Error("required environment variable is not set", "key", key)
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

func completionMode(v string) usecase.CompletionMode {
	if strings.TrimSpace(v) == "" {
		return usecase.CompletionProgressive
	}
	mode, ok := usecase.ParseCompletionMode(v)
	if !ok {
		slog.Error("invalid COMPLETION_MODE", "value", v)
		os.Exit(1)
	}
	return mode
}

func defaultPersona(v string) domain.Persona {
	if strings.TrimSpace(v) == "" {
		return usecase.DefaultPersona
	}
	p, ok := usecase.ParsePersona(v)
	if !ok {
		slog.Error("invalid DEFAULT_PERSONA", "value", v)
		os.Exit(1)
	}
	return p
}
