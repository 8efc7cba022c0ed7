package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/smarttransit/seat-reservation-backend/internal/utils"
)

func main() {
	envFormat := flag.Bool("env", true, "print as KEY=value lines for a .env file")
	flag.Parse()

	accessSecret, refreshSecret, err := utils.GenerateJWTSecrets()
	if err != nil {
		log.Fatalf("Failed to generate secrets: %v", err)
	}

	if !*envFormat {
		fmt.Println(accessSecret)
		fmt.Println(refreshSecret)
		return
	}

	fmt.Println("# Seat reservation backend JWT secrets. Keep them out of version control.")
	fmt.Printf("JWT_SECRET=%s\n", accessSecret)
	fmt.Printf("JWT_REFRESH_SECRET=%s\n", refreshSecret)
}
