package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/localnerve/jam-build-recordsdb/tests/helpers"
)

func main() {
	var showHelp bool
	flag.BoolVar(&showHelp, "h", false, "show help")
	var envFilename string
	flag.StringVar(&envFilename, "f", "", "path to the .env file")
	var dbOnly bool
	flag.BoolVar(&dbOnly, "db", false, "start only the database container")
	flag.Parse()

	usage := `
Run the recordsdb testcontainers with the environment variables from the .env file.

Usage:

testcontainers [-h] [-db] [-f ENV_FILE_PATH]

-db: start only the database, to run the service locally against it
ENV_FILE_PATH: path to the .env file

example
  testcontainers -f /path/to/something/.env
`
	// if -h flag print usage and return
	if showHelp {
		fmt.Println(usage)
		return
	}

	if envFilename != "" {
		log.Printf("Loading environment variables from %s\n", envFilename)
		if err := godotenv.Load(envFilename); err != nil {
			log.Fatalf("Failed to load environment variables: %v\n", err)
		}
	} else {
		log.Printf("No environment file specified, using current environment variables\n")
	}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGTSTP, syscall.SIGQUIT)

	started := make(chan *helpers.TestContainers, 1)
	go func() {
		var (
			tc  *helpers.TestContainers
			err error
		)
		if dbOnly {
			tc, err = helpers.CreateDBTestContainer(nil)
		} else {
			tc, err = helpers.CreateAllTestContainers(nil)
		}
		if err != nil {
			log.Fatalf("Failed to create test containers: %v\n", err)
		}
		if dbOnly {
			cfg := tc.DBConfig(nil)
			log.Printf("DB_HOST=%s DB_PORT=%s\n", cfg.DBHost, cfg.DBPort)
		}
		started <- tc
	}()

	var testContainers *helpers.TestContainers
	select {
	case sig := <-sigs:
		log.Printf("\nReceived signal: %v before containers were ready\n", sig)
		return
	case testContainers = <-started:
	}

	sig := <-sigs
	log.Printf("\nReceived signal: %v, terminating test containers...\n", sig)
	testContainers.Terminate(nil)
}
