// Package log provides secure logging functionality with automatic sanitization
// of sensitive information, built on top of the standard slog package.
//
// This package extends slog to provide:
//   - Automatic sanitization of sensitive values (credentials, cookies, DSNs)
//   - Configurable log levels with verbose mode support
//   - Consistent log formatting across the application
//
// # Security Features
//
// The explorer handles secrets as a matter of course: login credentials from
// the target configuration, session cookies captured from the browser, and
// database connection strings for backend adapters. The SecureHandler
// sanitizes all of them in log output:
//   - Login credentials and test data marked sensitive (passwords, tokens)
//   - Browser session cookies and authorization headers
//   - Adapter connection strings containing embedded passwords
//   - Secret values detected by pattern matching (JWTs, bearer tokens, keys)
//
// Even in verbose mode, sensitive values are masked to prevent accidental
// exposure of secrets in logs that may be shared or attached to bug reports.
//
// # Usage
//
//	// Create a secure logger
//	logger := log.NewSecureLogger(os.Stderr, true) // verbose=true
//
//	// Use as a standard slog.Logger
//	logger.Info("login completed",
//	    "cookie", "session=abc123",  // Sanitized to ***REDACTED***
//	    "url", "http://localhost:3000/login",
//	)
//
//	// Set as default logger
//	slog.SetDefault(logger)
package log
