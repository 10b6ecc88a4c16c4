// Package mail sends operator notifications by email. The SMTP sender is
// built on github.com/emersion/go-smtp with SASL PLAIN authentication.
package mail
