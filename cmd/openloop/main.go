package main

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/mikeboe/openloop/pkg/agent"
	"github.com/mikeboe/openloop/pkg/clients"
	"github.com/mikeboe/openloop/pkg/config"
	"github.com/mikeboe/openloop/pkg/search"
)

var (
	question string
	effort   string
)

func main() {
	// Setup structured logging
	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))

	// Load .env file
	if err := godotenv.Load(); err != nil {
		// It's okay if .env doesn't exist, as long as env vars are set
	}

	cfg := config.Load()

	rootCmd := &cobra.Command{
		Use:   "openloop",
		Short: "A terminal-based research agent",
		Long:  `OpenLoop is an autonomous agent that answers a research question by iterating through a search-reflect-synthesize loop over live web results.`,
		Run: func(cmd *cobra.Command, args []string) {

			questionFlagChanged := cmd.Flags().Changed("question")

			if !questionFlagChanged {
				// Interactive Mode
				reader := bufio.NewReader(os.Stdin)

				fmt.Print("Enter research question: ")
				input, _ := reader.ReadString('\n')
				question = strings.TrimSpace(input)
				if question == "" {
					slog.Error("Question cannot be empty")
					os.Exit(1)
				}

				fmt.Printf("Enter effort tier (default: %s): ", effort)
				input, _ = reader.ReadString('\n')
				input = strings.TrimSpace(input)
				if input != "" {
					effort = input
				}
			} else {
				// Non-Interactive Mode (Flag provided)
				if question == "" {
					slog.Error("--question flag provided but empty")
					os.Exit(1)
				}
			}

			profile, err := config.ProfileFor(effort)
			if err != nil {
				slog.Error("Invalid effort tier", "error", err)
				os.Exit(1)
			}

			ctx := context.Background()

			queryLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.QueryModel)
			if err != nil {
				slog.Error("Failed to init query model", "error", err)
				os.Exit(1)
			}
			reflectionLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.ReflectionModel)
			if err != nil {
				slog.Error("Failed to init reflection model", "error", err)
				os.Exit(1)
			}
			answerLLM, err := clients.GoogleAI(ctx, cfg.GoogleApiKey, cfg.AnswerModel)
			if err != nil {
				slog.Error("Failed to init answer model", "error", err)
				os.Exit(1)
			}

			searcher := search.NewClient(cfg.TavilyApiKey)
			searcher.Depth = cfg.SearchDepth
			searcher.MaxResults = cfg.MaxSearchResults

			eng := agent.NewEngine(
				agent.NewLLMQueryGenerator(queryLLM),
				searcher,
				agent.NewLLMReflectionEvaluator(reflectionLLM),
				agent.NewLLMAnswerSynthesizer(answerLLM),
			)
			eng.InitialQueryCount = profile.InitialQueryCount
			eng.MaxResearchLoops = profile.MaxResearchLoops

			sink := agent.SinkFunc(func(evt agent.Event) {
				switch evt.Type {
				case agent.EventStep:
					fmt.Printf("== %s ==\n", evt.Title)
					if evt.Data != nil {
						fmt.Println(evt.Data.String())
					}
					fmt.Println()
				case agent.EventError:
					fmt.Fprintf(os.Stderr, "error: %s\n", evt.Error)
				}
			})

			result, err := eng.Run(ctx, question, sink)
			if err != nil {
				slog.Error("Research run failed", "error", err)
				os.Exit(1)
			}

			fmt.Println("== Answer ==")
			fmt.Println(result.Answer.Text)
			fmt.Println()
			if len(result.Answer.Sources) > 0 {
				fmt.Println("Sources:")
				for _, src := range result.Answer.Sources {
					fmt.Printf("  - %s\n", src)
				}
			}
			fmt.Printf("\nConfidence: %.2f (loops: %d, queries: %d)\n",
				result.Answer.ConfidenceScore, result.Metadata.ResearchLoops, result.Metadata.QueriesRun)
		},
	}

	rootCmd.Flags().StringVarP(&question, "question", "q", "", "The research question")
	rootCmd.Flags().StringVarP(&effort, "effort", "e", "medium", "Effort tier: low, medium or high")

	if err := rootCmd.Execute(); err != nil {
		slog.Error("Command execution failed", "error", err)
		os.Exit(1)
	}
}
