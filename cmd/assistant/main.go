//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package main starts the document assistant HTTP server: corpus-backed
// semantic search, PDF upload sessions and grounded chat.
//
// Usage:
//
//	go run ./cmd/assistant -addr :8080 -corpus-dir ./assets/manuals
//
// Credentials come from the environment: OPENAI_API_KEY or GOOGLE_API_KEY
// for embeddings, DEEPSEEK_API_KEY or OPENAI_API_KEY for chat, and
// COS_SECRETID/COS_SECRETKEY when a COS bucket is configured.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"trpc.group/trpc-go/trpc-assistant-go/chat"
	"trpc.group/trpc-go/trpc-assistant-go/corpus"
	"trpc.group/trpc-go/trpc-assistant-go/corpus/cos"
	"trpc.group/trpc-go/trpc-assistant-go/embedder"
	geminiembedder "trpc.group/trpc-go/trpc-assistant-go/embedder/gemini"
	openaiembedder "trpc.group/trpc-go/trpc-assistant-go/embedder/openai"
	"trpc.group/trpc-go/trpc-assistant-go/log"
	"trpc.group/trpc-go/trpc-assistant-go/retrieval"
	"trpc.group/trpc-go/trpc-assistant-go/server"
	"trpc.group/trpc-go/trpc-assistant-go/session"
)

const (
	defaultListenAddr      = ":8080"
	defaultShutdownTimeout = 10 * time.Second
)

func main() {
	var (
		addr         string
		corpusDir    string
		corpusFile   string
		cosBucketURL string
		embedderKind string
		chatModel    string
		vehicleModel string
		vehicleYear  string
		sessionTTL   time.Duration
		maxSessions  int
	)
	flag.StringVar(&addr, "addr", defaultListenAddr, "Listen address")
	flag.StringVar(&corpusDir, "corpus-dir", "", "Directory holding per-corpus embeddings.json/content.json")
	flag.StringVar(&corpusFile, "corpus-file", "", "Single corpus chunk file")
	flag.StringVar(&cosBucketURL, "cos-bucket-url", os.Getenv("COS_BUCKET_URL"), "COS bucket URL for corpus chunks")
	flag.StringVar(&embedderKind, "embedder", "openai", "Embedding provider: openai, gemini or none")
	flag.StringVar(&chatModel, "chat-model", "", "Chat model name (defaults per provider)")
	flag.StringVar(&vehicleModel, "vehicle-model", "Cadillac", "Vehicle model named in chat prompts")
	flag.StringVar(&vehicleYear, "vehicle-year", "2024", "Vehicle year named in chat prompts")
	flag.DurationVar(&sessionTTL, "session-ttl", 0, "Uploaded-document session lifetime (0 keeps sessions until deleted)")
	flag.IntVar(&maxSessions, "max-sessions", 0, "Maximum live uploaded-document sessions (0 is unlimited)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	emb := buildEmbedder(ctx, embedderKind)
	store := buildCorpusStore(corpusFile, corpusDir, cosBucketURL)

	var sessionOpts []session.ServiceOpt
	if sessionTTL > 0 {
		sessionOpts = append(sessionOpts, session.WithTTL(sessionTTL))
	}
	if maxSessions > 0 {
		sessionOpts = append(sessionOpts, session.WithMaxSessions(maxSessions))
	}
	sessions := session.NewService(sessionOpts...)

	retriever := retrieval.New(
		retrieval.WithEmbedder(emb),
		retrieval.WithCorpusStore(store),
		retrieval.WithSessionService(sessions),
	)

	serverOpts := []server.Option{
		server.WithRetriever(retriever),
		server.WithSessionService(sessions),
		server.WithVehicle(vehicleModel, vehicleYear),
	}
	if emb != nil {
		serverOpts = append(serverOpts, server.WithEmbedder(emb))
	}
	if chatClient := buildChatClient(chatModel); chatClient != nil {
		serverOpts = append(serverOpts, server.WithChatClient(chatClient))
	}

	srv := &http.Server{
		Addr:    addr,
		Handler: server.New(serverOpts...).Handler(),
	}

	go func() {
		log.Infof("assistant listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("server failed: %v", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), defaultShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Errorf("shutdown failed: %v", err)
	}
}

// buildEmbedder selects the embedding provider. Missing credentials are not
// fatal: retrieval degrades to lexical scoring.
func buildEmbedder(ctx context.Context, kind string) embedder.Embedder {
	switch kind {
	case "openai":
		if os.Getenv("OPENAI_API_KEY") == "" {
			log.Warn("OPENAI_API_KEY not set, search falls back to lexical scoring")
			return nil
		}
		return openaiembedder.New()
	case "gemini":
		emb, err := geminiembedder.New(ctx)
		if err != nil {
			log.Warnf("gemini embedder unavailable, search falls back to lexical scoring: %v", err)
			return nil
		}
		return emb
	case "none":
		return nil
	default:
		log.Warnf("unknown embedder %q, search falls back to lexical scoring", kind)
		return nil
	}
}

// buildCorpusStore chains the configured providers: explicit file, then
// directory layout, then COS.
func buildCorpusStore(corpusFile, corpusDir, cosBucketURL string) *corpus.Store {
	var providers []corpus.Provider
	if corpusFile != "" {
		providers = append(providers, corpus.NewFileProvider("file", corpusFile))
	}
	if corpusDir != "" {
		providers = append(providers, corpus.NewDirProvider("dir", corpusDir))
	}
	if cosBucketURL != "" {
		provider, err := cos.NewProvider("cos", cosBucketURL)
		if err != nil {
			log.Warnf("COS provider unavailable: %v", err)
		} else {
			providers = append(providers, provider)
		}
	}
	return corpus.New(corpus.WithProviders(providers...))
}

// buildChatClient prefers DeepSeek and falls back to OpenAI. Without keys
// the chat endpoints report unavailable while search keeps working.
func buildChatClient(model string) *chat.Client {
	if key := os.Getenv("DEEPSEEK_API_KEY"); key != "" {
		opts := []chat.Option{chat.WithAPIKey(key), chat.WithBaseURL(chat.DeepSeekBaseURL)}
		if model != "" {
			opts = append(opts, chat.WithModel(model))
		}
		return chat.New(opts...)
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		opts := []chat.Option{chat.WithAPIKey(key), chat.WithModel("gpt-4o-mini")}
		if model != "" {
			opts = append(opts, chat.WithModel(model))
		}
		return chat.New(opts...)
	}
	log.Warn("no chat API key set, chat endpoints disabled")
	return nil
}
