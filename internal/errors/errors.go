package errors

import "errors"

var (
	ErrAPIKeyRequired     = errors.New("SQUARESPACE_API_KEY is required")
	ErrDatabaseRequired   = errors.New("database connection settings are required (DB_USER, DB_PASS, DB_SERVER or DATABASE_URL)")
	ErrSyncInProgress     = errors.New("another sync is already in progress")
	ErrNotECRRegistry     = errors.New("registry is not an ECR registry host")
	ErrImageNotFound      = errors.New("image not found in registry")
	ErrRunNotFound        = errors.New("run not found")
	ErrSecretNotFound     = errors.New("secret not found")
	ErrSchemaMissing      = errors.New("orders table is missing, run migrate")
	ErrUnexpectedResponse = errors.New("unexpected response from squarespace")
)
