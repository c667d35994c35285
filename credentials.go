package main

import (
	"context"
	"log/slog"
	"os"
)

// Resolver finds a working session cookie: the environment override first,
// then the cache, then an interactive login whose result is cached.
type Resolver struct {
	EnvVar    string
	Store     *CredentialStore
	Validator validator
	// Acquirer may be nil, in which case no browser is ever opened.
	Acquirer Acquirer

	getenv func(string) string
}

func NewResolver(cfg Config, v validator, acq Acquirer) *Resolver {
	return &Resolver{
		EnvVar:    cfg.EnvVar,
		Store:     NewCredentialStore(cfg.CookiePath),
		Validator: v,
		Acquirer:  acq,
		getenv:    os.Getenv,
	}
}

func (r *Resolver) Resolve(ctx context.Context) (Credential, error) {
	rejected := false

	// env var override first
	if value := r.getenv(r.EnvVar); value != "" {
		slog.Info("using session key from environment", "var", r.EnvVar)
		cred := envCredential(value)
		if r.Validator.Validate(ctx, cred) {
			return cred, nil
		}
		slog.Warn("environment session key invalid, trying other sources", "var", r.EnvVar)
		rejected = true
	}

	if cred, ok := r.Store.Load(); ok {
		slog.Info("loading cached cookie", "path", r.Store.Path)
		if r.Validator.Validate(ctx, cred) {
			slog.Info("cached cookie is valid")
			return cred, nil
		}
		slog.Warn("cached cookie expired, need re-authentication")
		rejected = true
	}

	if r.Acquirer == nil {
		if rejected {
			return nil, ErrCredentialInvalid
		}
		return nil, ErrCredentialMissing
	}

	slog.Info("starting browser for authentication")
	cred, err := r.Acquirer.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.Store.Save(cred); err != nil {
		return nil, err
	}
	slog.Info("cookies saved", "path", r.Store.Path)
	return cred, nil
}
