package main

import (
	"bufio"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/example/maitri/internal/utils"
)

// hashpassword prints a bcrypt hash for ADMIN_PASSWORD_HASH. The password is
// taken from the first argument or read from stdin.
func main() {
	password := ""
	if len(os.Args) > 1 {
		password = os.Args[1]
	} else {
		fmt.Fprint(os.Stderr, "Password: ")
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			log.Fatalf("read password: %v", err)
		}
		password = strings.TrimRight(line, "\r\n")
	}

	if password == "" {
		log.Fatal("password must not be empty")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		log.Fatalf("hash password: %v", err)
	}

	// Single quotes stop godotenv from expanding the $ segments of the hash.
	fmt.Printf("ADMIN_PASSWORD_HASH='%s'\n", hash)
}
