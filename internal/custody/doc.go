// Package custody owns the wallet key lifecycle: it creates, encrypts,
// persists, and recovers the signing keypair without ever writing the private
// key to durable storage in plaintext.
//
// Responsibilities:
// - Derive an encryption key from the user secret (PBKDF2-SHA256, per-wallet salt).
// - Seal/open the secret key with AES-256-GCM under a construction-time policy.
// - Orchestrate create/authenticate/sign/delete over the credential store.
// - Migrate legacy plaintext records to encrypted form on authentication.
//
// Non-responsibilities:
// - Persistence mechanics (credstore/kvstore) and transport (adapters/rpc).
// - Chain RPC, balances, transaction submission.
package custody
