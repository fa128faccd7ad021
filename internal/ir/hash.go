package ir

import (
	"crypto/sha256"
	"encoding/hex"

	"golang.org/x/text/unicode/norm"
)

// DomainProgram prefixes program hashes. The version suffix allows the
// dump format to change without colliding with older cache entries.
const DomainProgram = "waveguide/program/v1"

// hashWithDomain computes SHA256(domain + 0x00 + data).
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// Hash is the content address of a program: its dump, NFC-normalized so that
// variable names spelled with different Unicode compositions hash the same.
func Hash[I Instruction](p *Program[I]) string {
	return hashWithDomain(DomainProgram, []byte(norm.NFC.String(p.String())))
}
