// This file is a helper for running tests with testcontainers.
// It is used by cmd/testcontainers as a standalone executable and by the integration tests.
// Expects environment variables to be loaded from .env files.
//

package helpers

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	_ "github.com/go-sql-driver/mysql"
	"github.com/google/uuid"
	"github.com/localnerve/jam-build-recordsdb/internal/config"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/network"
	"github.com/testcontainers/testcontainers-go/wait"
)

const imageName = "recordsdb-test:latest"

type TestContainers struct {
	Network             *testcontainers.DockerNetwork
	DBContainer         testcontainers.Container
	AuthorizerContainer testcontainers.Container
	RecordsDBContainer  testcontainers.Container
}

func (tc *TestContainers) Terminate(t *testing.T) {
	ctx := context.Background()
	if tc.RecordsDBContainer != nil {
		if err := tc.RecordsDBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate RecordsDB: %v", err)
		}
	}
	if tc.AuthorizerContainer != nil {
		if err := tc.AuthorizerContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Authorizer: %v", err)
		}
	}
	if tc.DBContainer != nil {
		if err := tc.DBContainer.Terminate(ctx); err != nil {
			logMessage(t, "Failed to terminate Database: %v", err)
		}
	}
	if tc.Network != nil {
		if err := tc.Network.Remove(ctx); err != nil {
			logMessage(t, "Failed to remove network: %v", err)
		}
	}
}

// DBConfig returns a config that reaches the database container from the host
func (tc *TestContainers) DBConfig(t *testing.T) *config.Config {
	ctx := context.Background()
	dbType := os.Getenv("DB_TYPE")
	port, err := nat.NewPort("tcp", os.Getenv("DB_PORT"))
	if err != nil {
		exitWithError(t, err, "Invalid DB_PORT")
	}
	host, _ := tc.DBContainer.Host(ctx)
	mapped, _ := tc.DBContainer.MappedPort(ctx, port)

	return &config.Config{
		DBType:            dbType,
		DBHost:            host,
		DBPort:            mapped.Port(),
		DBDatabase:        os.Getenv("DB_DATABASE"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBConnectionLimit: 5,
		DBConnectAttempts: 10,
		DBLogLevel:        "warn",
	}
}

// CreateDBTestContainer starts only the database, on its own network
func CreateDBTestContainer(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()
	testContainers := &TestContainers{}

	nw, err := network.New(ctx)
	if err != nil {
		exitWithError(t, err, "Failed to create network")
	}
	testContainers.Network = nw

	if err := startDB(t, ctx, testContainers); err != nil {
		testContainers.Terminate(t)
		return nil, err
	}
	return testContainers, nil
}

// CreateAllTestContainers starts the database, the authorizer when
// AUTHZ_IMAGE is set, and the service itself
func CreateAllTestContainers(t *testing.T) (*TestContainers, error) {
	ctx := context.Background()

	testContainers, err := CreateDBTestContainer(t)
	if err != nil {
		exitWithError(t, err, "Failed to start Database")
	}
	networkName := testContainers.Network.Name
	debugContainer := os.Getenv("DEBUG_CONTAINER")

	authzURL := ""
	if authzImage := os.Getenv("AUTHZ_IMAGE"); authzImage != "" {
		authzNetworkName := "authorizer"
		tcpAuthzPort, err := nat.NewPort("tcp", os.Getenv("AUTHZ_PORT"))
		if err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, "Failed to create Authorizer port")
		}
		authzDbConnection := fmt.Sprintf("root:%s@tcp(%s:%s)/%s", os.Getenv("DB_ROOT_PASSWORD"), os.Getenv("DB_HOST"), os.Getenv("DB_PORT"), os.Getenv("AUTHZ_DATABASE"))
		authzLogLevel := "info"
		if debugContainer == "true" {
			authzLogLevel = "debug"
		}
		authorizerContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        authzImage,
				ExposedPorts: []string{string(tcpAuthzPort)},
				Env: map[string]string{
					"ENV":           "production",
					"CLIENT_ID":     os.Getenv("AUTHZ_CLIENT_ID"),
					"PORT":          os.Getenv("AUTHZ_PORT"),
					"DATABASE_TYPE": os.Getenv("DB_TYPE"),
					"DATABASE_NAME": os.Getenv("AUTHZ_DATABASE"),
					"DATABASE_URL":  authzDbConnection,
					"ADMIN_SECRET":  os.Getenv("AUTHZ_ADMIN_SECRET"),
					"ROLES":         "admin,user",
					"DEFAULT_ROLES": "user",
					"LOG_LEVEL":     authzLogLevel,
				},
				WaitingFor: wait.ForLog("Authorizer running at PORT:").WithStartupTimeout(10 * time.Second),
				Networks:   []string{networkName},
				NetworkAliases: map[string][]string{
					networkName: {authzNetworkName},
				},
			},
			Started: true,
		})
		if err != nil {
			testContainers.Terminate(t)
			exitWithError(t, err, "Failed to start Authorizer")
		}
		testContainers.AuthorizerContainer = authorizerContainer
		authzURL = fmt.Sprintf("http://%s:%s", authzNetworkName, os.Getenv("AUTHZ_PORT"))

		authzHost, _ := authorizerContainer.Host(ctx)
		authzPort, _ := authorizerContainer.MappedPort(ctx, tcpAuthzPort)
		logMessage(t, "AUTHZ_URL=%s:%s", authzHost, authzPort.Port())
	}

	exists, err := imageExists(ctx, imageName)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to check if image exists")
	}

	portNumber := os.Getenv("PORT")
	if portNumber == "" {
		portNumber = "3000"
	}
	tcpPort, err := nat.NewPort("tcp", portNumber)
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to create RecordsDB port")
	}

	env := map[string]string{
		"DB_TYPE":             os.Getenv("DB_TYPE"),
		"DB_HOST":             os.Getenv("DB_HOST"),
		"DB_PORT":             os.Getenv("DB_PORT"),
		"DB_DATABASE":         os.Getenv("DB_DATABASE"),
		"DB_USER":             os.Getenv("DB_USER"),
		"DB_PASSWORD":         os.Getenv("DB_PASSWORD"),
		"DB_CONNECTION_LIMIT": os.Getenv("DB_CONNECTION_LIMIT"),
		"DB_CONNECT_ATTEMPTS": "10",
		"PORT":                portNumber,
	}
	if authzURL != "" {
		env["AUTHZ_URL"] = authzURL
		env["AUTHZ_CLIENT_ID"] = os.Getenv("AUTHZ_CLIENT_ID")
	}

	request := testcontainers.ContainerRequest{
		ExposedPorts: []string{string(tcpPort)},
		Env:          env,
		WaitingFor:   wait.ForHTTP("/metrics").WithPort(tcpPort).WithStartupTimeout(30 * time.Second),
		Networks:     []string{networkName},
	}

	if !exists {
		sessionID := uuid.New().String()
		buildContext := os.Getenv("TESTCONTAINERS_BUILD_CONTEXT")
		if buildContext == "" {
			buildContext = "../.."
		}

		logMessage(t, "Image %s does not exist, building...", imageName)
		parts := strings.Split(imageName, ":")
		request.FromDockerfile = testcontainers.FromDockerfile{
			Context:    buildContext,
			Dockerfile: "Dockerfile",
			Repo:       parts[0],
			Tag:        parts[1],
			KeepImage:  true,
			BuildArgs: map[string]*string{
				"RESOURCE_REAPER_SESSION_ID": &sessionID,
			},
			BuildOptionsModifier: func(opts *build.ImageBuildOptions) {
				opts.Target = "runtime"
			},
			PrintBuildLog: true,
		}
	} else {
		logMessage(t, "Image %s exists, reusing...", imageName)
		request.Image = imageName
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: request,
		Started:          true,
	})
	if err != nil {
		testContainers.Terminate(t)
		exitWithError(t, err, "Failed to start RecordsDB")
	}
	testContainers.RecordsDBContainer = container

	host, _ := container.Host(ctx)
	port, _ := container.MappedPort(ctx, tcpPort)
	logMessage(t, "BASE_URL=%s:%s", host, port.Port())

	logMessage(t, "RecordsDB testcontainer started successfully")
	return testContainers, nil
}

func startDB(t *testing.T, ctx context.Context, testContainers *TestContainers) error {
	dbType := os.Getenv("DB_TYPE")
	networkName := testContainers.Network.Name

	tcpDbPort, err := nat.NewPort("tcp", os.Getenv("DB_PORT"))
	if err != nil {
		return fmt.Errorf("invalid DB_PORT: %w", err)
	}

	var waitFor wait.Strategy = wait.ForListeningPort(tcpDbPort).WithStartupTimeout(60 * time.Second)
	if dbType == "postgres" {
		waitFor = wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second)
	}

	dbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        os.Getenv("DB_IMAGE"),
			ExposedPorts: []string{string(tcpDbPort)},
			Env:          getDBInitEnvMap(dbType),
			WaitingFor:   waitFor,
			Networks:     []string{networkName},
			NetworkAliases: map[string][]string{
				networkName: {os.Getenv("DB_HOST")},
			},
		},
		Started: true,
	})
	if err != nil {
		return fmt.Errorf("failed to start database: %w", err)
	}
	testContainers.DBContainer = dbContainer

	switch dbType {
	case "mysql", "mariadb":
		dbHost, _ := dbContainer.Host(ctx)
		dbPort, _ := dbContainer.MappedPort(ctx, tcpDbPort)
		return performMySqlDBInit(dbHost, dbPort)
	}
	return nil
}

func getDBInitEnvMap(dbType string) map[string]string {
	switch dbType {
	case "postgres":
		return map[string]string{
			"POSTGRES_PASSWORD": os.Getenv("DB_PASSWORD"),
			"POSTGRES_USER":     os.Getenv("DB_USER"),
			"POSTGRES_DB":       os.Getenv("DB_DATABASE"),
		}
	case "mariadb", "mysql":
		return map[string]string{
			"MYSQL_ROOT_PASSWORD": os.Getenv("DB_ROOT_PASSWORD"),
			"MYSQL_DATABASE":      os.Getenv("DB_DATABASE"),
			"MYSQL_USER":          os.Getenv("DB_USER"),
			"MYSQL_PASSWORD":      os.Getenv("DB_PASSWORD"),
		}
	}
	return nil
}

// performMySqlDBInit creates the authorizer database next to the service database
func performMySqlDBInit(dbHost string, dbPort nat.Port) error {
	authzDatabase := os.Getenv("AUTHZ_DATABASE")
	if authzDatabase == "" {
		return nil
	}

	db, err := sql.Open("mysql", fmt.Sprintf("root:%s@tcp(%s:%s)/", os.Getenv("DB_ROOT_PASSWORD"), dbHost, dbPort.Port()))
	if err != nil {
		return fmt.Errorf("failed to connect to database for setup: %w", err)
	}
	defer db.Close()

	// Wait for connection to be really ready
	for i := 0; i < 30; i++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(1 * time.Second)
	}
	if err != nil {
		return fmt.Errorf("database not ready after 30 seconds: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", authzDatabase)); err != nil {
		return fmt.Errorf("failed to create %s: %w", authzDatabase, err)
	}
	return nil
}

func imageExists(ctx context.Context, imageName string) (bool, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return false, err
	}
	defer cli.Close()

	images, err := cli.ImageList(ctx, image.ListOptions{})
	if err != nil {
		return false, err
	}

	for _, image := range images {
		for _, tag := range image.RepoTags {
			if tag == imageName {
				return true, nil
			}
		}
	}

	return false, nil
}

func exitWithError(t *testing.T, err error, msg string) {
	if t != nil {
		t.Fatalf(msg+": %v", err)
	} else {
		fmt.Printf(msg+": %v\n", err)
		os.Exit(1)
	}
}

func logMessage(t *testing.T, format string, args ...any) {
	if t != nil {
		t.Logf(format, args...)
	} else {
		fmt.Printf(format+"\n", args...)
	}
}
