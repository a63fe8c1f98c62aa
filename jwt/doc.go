// Package jwt issues and verifies the signed session tokens handed out by the
// identity provider after a password login or an OTP verification.
package jwt
