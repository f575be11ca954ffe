// Package vault keeps service passwords outside the row store, encrypted
// with AES-256-GCM under a key derived from the user's passphrase with
// argon2id.
//
// Each secret is bound to its owner and service id as additional
// authenticated data, so a ciphertext copied to another row fails to open.
package vault
