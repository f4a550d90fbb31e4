//go:build integration

package integration

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"

	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	goredis "github.com/redis/go-redis/v9"
)

const (
	kafkaBroker = "localhost:9092"
	auditTopic  = "test-key-events"
	vaultAddr   = "http://localhost:8200"
	vaultToken  = "myroot"
)

// redisAddr is the host:port of the Redis container started by TestMain.
var redisAddr string

// dependency is one container the suite needs, with its readiness probe.
type dependency struct {
	name  string
	run   func(pool *dockertest.Pool, networkID string) (*dockertest.Resource, error)
	ready func(r *dockertest.Resource) error
}

var dependencies = []dependency{
	{
		name: "zookeeper",
		run: func(pool *dockertest.Pool, networkID string) (*dockertest.Resource, error) {
			return pool.RunWithOptions(&dockertest.RunOptions{
				Name: "zookeeper", Repository: "wurstmeister/zookeeper", Tag: "latest", NetworkID: networkID,
			})
		},
	},
	{
		name: "kafka",
		run: func(pool *dockertest.Pool, networkID string) (*dockertest.Resource, error) {
			return pool.RunWithOptions(&dockertest.RunOptions{
				Repository: "wurstmeister/kafka",
				Tag:        "latest",
				NetworkID:  networkID,
				PortBindings: map[docker.Port][]docker.PortBinding{
					"9092/tcp": {{HostPort: "9092"}},
				},
				Env: []string{
					"KAFKA_ADVERTISED_HOST_NAME=localhost",
					"KAFKA_ZOOKEEPER_CONNECT=zookeeper:2181",
					"KAFKA_CREATE_TOPICS=" + auditTopic + ":1:1",
				},
			})
		},
		ready: func(r *dockertest.Resource) error {
			_, err := r.Exec([]string{"kafka-topics.sh", "--zookeeper", "zookeeper:2181", "--list"}, dockertest.ExecOptions{})
			return err
		},
	},
	{
		name: "vault",
		run: func(pool *dockertest.Pool, _ string) (*dockertest.Resource, error) {
			return pool.RunWithOptions(&dockertest.RunOptions{
				Repository: "hashicorp/vault",
				Tag:        "latest",
				PortBindings: map[docker.Port][]docker.PortBinding{
					"8200/tcp": {{HostPort: "8200"}},
				},
				Env: []string{
					"VAULT_DEV_ROOT_TOKEN_ID=" + vaultToken,
					"VAULT_DEV_LISTEN_ADDRESS=0.0.0.0:8200",
				},
			})
		},
		ready: func(r *dockertest.Resource) error {
			_, err := r.Exec([]string{"vault", "status", "-address=http://127.0.0.1:8200"}, dockertest.ExecOptions{})
			return err
		},
	},
	{
		name: "redis",
		run: func(pool *dockertest.Pool, _ string) (*dockertest.Resource, error) {
			r, err := pool.Run("redis", "7-alpine", nil)
			if err == nil {
				redisAddr = fmt.Sprintf("localhost:%s", r.GetPort("6379/tcp"))
			}
			return r, err
		},
		ready: func(*dockertest.Resource) error {
			client := goredis.NewClient(&goredis.Options{Addr: redisAddr})
			defer client.Close()
			return client.Ping(context.Background()).Err()
		},
	},
}

func TestMain(m *testing.M) {
	if os.Getenv("SKIP_DOCKER_TESTS") != "" {
		os.Exit(m.Run())
	}

	pool, err := dockertest.NewPool("")
	if err != nil {
		log.Fatalf("Could not connect to docker: %s", err)
	}
	network, err := pool.Client.CreateNetwork(docker.CreateNetworkOptions{Name: "clusterkeys-net"})
	if err != nil {
		log.Fatalf("Could not create network: %s", err)
	}

	var started []*dockertest.Resource
	for _, dep := range dependencies {
		r, err := dep.run(pool, network.ID)
		if err != nil {
			log.Fatalf("Could not start %s: %s", dep.name, err)
		}
		started = append(started, r)
	}
	for i, dep := range dependencies {
		if dep.ready == nil {
			continue
		}
		r := started[i]
		if err := pool.Retry(func() error { return dep.ready(r) }); err != nil {
			log.Fatalf("%s did not become ready: %s", dep.name, err)
		}
	}

	code := m.Run()

	// os.Exit skips deferred calls, so clean up explicitly.
	for i := len(started) - 1; i >= 0; i-- {
		if err := pool.Purge(started[i]); err != nil {
			log.Printf("Could not purge %s: %s", started[i].Container.Name, err)
		}
	}
	if err := pool.Client.RemoveNetwork(network.ID); err != nil {
		log.Printf("Could not remove network: %s", err)
	}
	os.Exit(code)
}
