//cmd/seeder/main.go
package main

import (
    "context"
    "errors"
    "fmt"
    "io/fs"
    "log"
    "os"

    "gopkg.in/yaml.v3"

    "github.com/unclebandit/leadpilot-backend/internal/config"
    "github.com/unclebandit/leadpilot-backend/internal/db"
    "github.com/unclebandit/leadpilot-backend/internal/model"
    "github.com/unclebandit/leadpilot-backend/internal/repository"
)

type agentSpec struct {
    Name         string  `yaml:"name"`
    Category     string  `yaml:"category"`
    Model        string  `yaml:"model"`
    Temperature  float64 `yaml:"temperature"`
    Instructions string  `yaml:"instructions"`
    Active       *bool   `yaml:"active"`
}

func main() {
    cfg := config.Load()
    conn, err := db.Open(cfg)
    if err != nil {
        log.Fatal(err)
    }
    defer conn.Close()

    ctx := context.Background()
    if err := db.Migrate(ctx, conn); err != nil {
        log.Fatal(err)
    }
    fmt.Println("Schema applied")

    seedFiles := []string{
        "seed/leads.sql",
    }
    for _, file := range seedFiles {
        content, err := os.ReadFile(file)
        if errors.Is(err, fs.ErrNotExist) {
            log.Printf("⚠️ %s not found, skipping", file)
            continue
        }
        if err != nil {
            log.Fatalf("failed to read %s: %v", file, err)
        }
        if _, err := conn.ExecContext(ctx, string(content)); err != nil {
            log.Fatalf("failed to execute %s: %v", file, err)
        }
        fmt.Printf("Seeded: %s\n", file)
    }

    agentsPath := os.Getenv("SEED_AGENTS")
    if agentsPath == "" {
        agentsPath = "seed/agents.yaml"
    }
    agents, err := loadAgents(agentsPath)
    if err != nil {
        log.Fatal(err)
    }
    agentRepo := &repository.AgentRepository{DB: conn}
    for i := range agents {
        if err := agentRepo.Upsert(ctx, &agents[i]); err != nil {
            log.Fatalf("failed to seed agent %q: %v", agents[i].Name, err)
        }
        fmt.Printf("Seeded agent: %s (%s)\n", agents[i].Name, agents[i].Category)
    }

    fmt.Println("Database seeding completed successfully!")
}

// loadAgents reads agent personas from a YAML file. Agents default to active.
func loadAgents(path string) ([]model.Agent, error) {
    content, err := os.ReadFile(path)
    if err != nil {
        return nil, fmt.Errorf("failed to read %s: %w", path, err)
    }

    var raw struct {
        Agents []agentSpec `yaml:"agents"`
    }
    if err := yaml.Unmarshal(content, &raw); err != nil {
        return nil, fmt.Errorf("failed to parse %s: %w", path, err)
    }

    agents := make([]model.Agent, 0, len(raw.Agents))
    for _, a := range raw.Agents {
        if a.Category == "" {
            return nil, fmt.Errorf("agent %q in %s has no category", a.Name, path)
        }
        agents = append(agents, model.Agent{
            Name:         a.Name,
            Category:     a.Category,
            Model:        a.Model,
            Temperature:  a.Temperature,
            Instructions: a.Instructions,
            Active:       a.Active == nil || *a.Active,
        })
    }
    return agents, nil
}
