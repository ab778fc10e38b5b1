// Package identity implements the identity and access core of a multi-role
// web application: credential issuance and verification, signed bearer
// tokens, TOTP two-factor authentication with single-use backup codes,
// email-ownership verification, federated (social) identity linking, and a
// department-scoped one-time staff-code gate for privileged registration.
//
// The [Engine] composes pluggable stores ([CredentialStore],
// [VerificationTokenStore], [StaffCodeStore]) with the token manager in
// package jwt and the bcrypt hasher in package password. Storage backends
// live in package postgres; the HTTP contract lives in package httpapi.
//
// Bearer tokens never carry a role claim. Every privileged check re-reads
// the live identity from the credential store, so a role change takes
// effect immediately even while older tokens remain valid.
package identity
