//
// Tencent is pleased to support the open source community by making trpc-assistant-go available.
//
// Copyright (C) 2025 Tencent.  All rights reserved.
//
// trpc-assistant-go is licensed under the Apache License Version 2.0.
//
//

// Package cos provides a corpus provider backed by Tencent Cloud Object
// Storage. Corpus JSON objects are stored either at a fixed key or under
// {prefix}/{corpusID}/embeddings.json for per-corpus layouts.
//
// Authentication credentials come from the COS_SECRETID and COS_SECRETKEY
// environment variables, or from the WithSecretID/WithSecretKey options.
package cos

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"time"

	cos "github.com/tencentyun/cos-go-sdk-v5"

	"trpc.group/trpc-go/trpc-assistant-go/corpus"
	"trpc.group/trpc-go/trpc-assistant-go/document"
)

const defaultTimeout = 60 * time.Second

// client interface is unstable and may change in the future.
type client interface {
	GetObject(ctx context.Context, name string) (io.ReadCloser, error)
}

type cosClient struct {
	*cos.Client
}

func (c *cosClient) GetObject(ctx context.Context, name string) (io.ReadCloser, error) {
	resp, err := c.Client.Object.Get(ctx, name, nil)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// Provider loads corpus chunks out of a COS bucket.
type Provider struct {
	name      string
	objectKey string
	prefix    string
	cosClient client
}

var _ corpus.Provider = (*Provider)(nil)

// Option defines a function type for configuring the provider.
type Option func(*options)

// options holds the configuration options for the provider.
type options struct {
	client     client
	httpClient *http.Client

	timeout   time.Duration
	secretID  string
	secretKey string
	objectKey string
	prefix    string
}

// WithClient sets the COS client directly.
// This option takes precedence over credential options when provided.
func WithClient(c *cos.Client) Option {
	return func(o *options) {
		o.client = &cosClient{Client: c}
	}
}

// WithHTTPClient sets the HTTP client to use for COS requests.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) {
		o.httpClient = c
	}
}

// WithTimeout sets the timeout duration for HTTP requests.
func WithTimeout(timeout time.Duration) Option {
	return func(o *options) {
		o.timeout = timeout
	}
}

// WithSecretID sets the COS secret ID for authentication.
// If not provided, the COS_SECRETID environment variable is used.
func WithSecretID(secretID string) Option {
	return func(o *options) {
		o.secretID = secretID
	}
}

// WithSecretKey sets the COS secret key for authentication.
// If not provided, the COS_SECRETKEY environment variable is used.
func WithSecretKey(secretKey string) Option {
	return func(o *options) {
		o.secretKey = secretKey
	}
}

// WithObjectKey sets a fixed object key holding the corpus JSON, used when
// the caller supplies no corpus ID.
func WithObjectKey(key string) Option {
	return func(o *options) {
		o.objectKey = key
	}
}

// WithPrefix sets the key prefix for per-corpus objects
// ({prefix}/{corpusID}/embeddings.json).
func WithPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// NewProvider creates a COS corpus provider for the given bucket URL.
func NewProvider(name, bucketURL string, opts ...Option) (*Provider, error) {
	o := &options{
		timeout:   defaultTimeout,
		secretID:  os.Getenv("COS_SECRETID"),
		secretKey: os.Getenv("COS_SECRETKEY"),
	}
	for _, opt := range opts {
		opt(o)
	}

	cli := o.client
	if cli == nil {
		u, err := url.Parse(bucketURL)
		if err != nil {
			return nil, fmt.Errorf("parse bucket URL: %w", err)
		}
		httpClient := o.httpClient
		if httpClient == nil {
			httpClient = &http.Client{
				Timeout: o.timeout,
				Transport: &cos.AuthorizationTransport{
					SecretID:  o.secretID,
					SecretKey: o.secretKey,
				},
			}
		}
		cli = &cosClient{Client: cos.NewClient(&cos.BaseURL{BucketURL: u}, httpClient)}
	}

	return &Provider{
		name:      name,
		objectKey: o.objectKey,
		prefix:    o.prefix,
		cosClient: cli,
	}, nil
}

// Name implements the corpus.Provider interface.
func (p *Provider) Name() string { return p.name }

// Load implements the corpus.Provider interface.
func (p *Provider) Load(ctx context.Context, corpusID string) ([]*document.Document, error) {
	key := p.objectKey
	if corpusID != "" && p.prefix != "" {
		key = path.Join(p.prefix, corpusID, "embeddings.json")
	}
	if key == "" {
		return nil, nil
	}

	body, err := p.cosClient.GetObject(ctx, key)
	if err != nil {
		if isNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("get corpus object %s: %w", key, err)
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return nil, fmt.Errorf("read corpus object %s: %w", key, err)
	}
	return corpus.ParseChunks(data)
}

func isNotFound(err error) bool {
	return cos.IsNotFoundError(err)
}
