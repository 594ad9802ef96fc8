// Package discovery locates the vision model endpoint used for captions.
package discovery

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/rs/zerolog"

	"github.com/justic/shortsgen/internal/config"
)

const DefaultFallback = "http://localhost:11434"

// ErrNoEndpoint is returned when a strategy finds nothing.
var ErrNoEndpoint = errors.New("no caption endpoint found")

// Resolver returns the base URL of the caption model server.
type Resolver interface {
	Resolve(ctx context.Context) (string, error)
}

// Static always returns the configured URL.
type Static string

func (s Static) Resolve(context.Context) (string, error) {
	if s == "" {
		return "", ErrNoEndpoint
	}
	return strings.TrimRight(string(s), "/"), nil
}

// DescribeInstancesAPI is the subset of the EC2 client used here.
type DescribeInstancesAPI interface {
	DescribeInstances(ctx context.Context, in *ec2.DescribeInstancesInput, opts ...func(*ec2.Options)) (*ec2.DescribeInstancesOutput, error)
}

// EC2 finds the first running instance with the given Name tag and a public IP.
type EC2 struct {
	API  DescribeInstancesAPI
	Tag  string
	Port int
}

func (e *EC2) Resolve(ctx context.Context) (string, error) {
	out, err := e.API.DescribeInstances(ctx, &ec2.DescribeInstancesInput{
		Filters: []types.Filter{
			{Name: aws.String("tag:Name"), Values: []string{e.Tag}},
			{Name: aws.String("instance-state-name"), Values: []string{"running"}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("describe instances: %w", err)
	}

	port := e.Port
	if port == 0 {
		port = 11434
	}
	for _, r := range out.Reservations {
		for _, inst := range r.Instances {
			if ip := aws.ToString(inst.PublicIpAddress); ip != "" {
				return fmt.Sprintf("http://%s:%d", ip, port), nil
			}
		}
	}
	return "", fmt.Errorf("%w: no running instance tagged %q", ErrNoEndpoint, e.Tag)
}

// Chain tries each resolver in order and falls back to Fallback.
type Chain struct {
	Resolvers []Resolver
	Fallback  string
	Logger    zerolog.Logger
}

func (c *Chain) Resolve(ctx context.Context) (string, error) {
	for _, r := range c.Resolvers {
		url, err := r.Resolve(ctx)
		if err == nil {
			c.Logger.Info().Str("endpoint", url).Msg("caption endpoint resolved")
			return url, nil
		}
		c.Logger.Warn().Err(err).Msg("caption endpoint lookup failed")
	}

	fallback := c.Fallback
	if fallback == "" {
		fallback = DefaultFallback
	}
	c.Logger.Warn().Str("endpoint", fallback).Msg("using fallback caption endpoint")
	return fallback, nil
}

// FromConfig builds the resolver chain for the configured strategy. api may be
// nil when the strategy is static.
func FromConfig(cfg config.EndpointConfig, api DescribeInstancesAPI, logger zerolog.Logger) Resolver {
	var resolvers []Resolver
	if cfg.Static != "" {
		resolvers = append(resolvers, Static(cfg.Static))
	}
	if cfg.Strategy == "ec2" && api != nil {
		resolvers = append(resolvers, &EC2{API: api, Tag: cfg.EC2Tag, Port: cfg.Port})
	}
	return &Chain{Resolvers: resolvers, Fallback: cfg.Fallback, Logger: logger}
}

// Resolve builds the configured chain and resolves it once. The EC2 client is
// only created for the ec2 strategy; when AWS config cannot be loaded the
// chain runs without it and ends at the fallback.
func Resolve(ctx context.Context, cfg config.EndpointConfig, region string, logger zerolog.Logger) (string, error) {
	var api DescribeInstancesAPI
	if cfg.Strategy == "ec2" {
		awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(region))
		if err != nil {
			logger.Warn().Err(err).Msg("AWS config unavailable, skipping EC2 discovery")
		} else {
			api = ec2.NewFromConfig(awsCfg)
		}
	}
	return FromConfig(cfg, api, logger).Resolve(ctx)
}
