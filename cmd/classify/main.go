// Command classify runs the message classifier against the configured
// language model without touching any store. It prints the parsed variant
// as JSON, one line per input message.
//
//	go run ./cmd/classify "Ayşe Yılmaz yarın 14:00 botoks"
//	echo "Kira 25000 ödendi" | go run ./cmd/classify
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/joho/godotenv"

	"github.com/erdincayar/klinik-asistan-sub000/internal/app/bootstrap"
	"github.com/erdincayar/klinik-asistan-sub000/internal/calendar"
	appconfig "github.com/erdincayar/klinik-asistan-sub000/internal/config"
	"github.com/erdincayar/klinik-asistan-sub000/internal/conversation"
	"github.com/erdincayar/klinik-asistan-sub000/pkg/logging"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}
	cfg := appconfig.Load()
	logger := logging.New(cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	var awsCfg *aws.Config
	if strings.TrimSpace(cfg.BedrockModelID) != "" {
		loaded, err := bootstrap.LoadAWSConfig(ctx, cfg)
		if err != nil {
			log.Fatalf("load aws config: %v", err)
		}
		awsCfg = &loaded
	}
	oracle, err := bootstrap.BuildOracle(ctx, cfg, awsCfg, nil, logger)
	if err != nil {
		log.Fatalf("build oracle: %v", err)
	}
	classifier := conversation.NewClassifier(oracle, logger)
	loc := calendar.Location(cfg.ClinicTimezone)

	messages := os.Args[1:]
	if len(messages) == 0 {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if line := strings.TrimSpace(scanner.Text()); line != "" {
				messages = append(messages, line)
			}
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetEscapeHTML(false)
	for _, text := range messages {
		start := time.Now()
		parsed := classifier.Classify(ctx, text, time.Now().In(loc))
		if err := enc.Encode(map[string]any{
			"text":       text,
			"kind":       parsed.Kind(),
			"result":     parsed,
			"elapsed_ms": time.Since(start).Milliseconds(),
		}); err != nil {
			fmt.Fprintf(os.Stderr, "encode: %v\n", err)
		}
	}
}
