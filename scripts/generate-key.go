// Package main is a development utility that generates the secrets the portal
// needs outside development mode: the session cookie signing secret and the CSRF
// key. It prints them as environment assignments ready to paste into a .env file
// or a secret manager. Generate fresh values per environment.
package main

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log"
)

func randomHex(n int) string {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		log.Fatal(err)
	}
	return hex.EncodeToString(buf)
}

func main() {
	fmt.Println("==========================================================")
	fmt.Println("Portal secrets")
	fmt.Println("==========================================================")
	fmt.Printf("RP_SESSION_SECRET=%s\n", randomHex(32))
	// gorilla/csrf wants exactly 32 bytes; the portal hashes whatever is set.
	fmt.Printf("RP_SECURITY_CSRF_KEY=%s\n", randomHex(32))
	fmt.Println("==========================================================")
}
