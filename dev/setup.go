package main

import (
	"fmt"
	"log/slog"
	"os"

	devenv "finscraper/dev/env"
	"finscraper/internal/runstore"
)

func createRunStore() error {
	path, err := devenv.ResolvePath("<dev_state>/runs.db")
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		fmt.Println("run store already created at", path)
		return nil
	}

	fmt.Println("creating run store at", path)
	db, err := runstore.Database{File: path}.OpenDB()
	if err != nil {
		return err
	}
	return db.Close()
}

const portalTestTemplate = `// credentials for the live portal test, this file is never committed
{
  profile: "",
  username: "",
  password: "",
}
`

const configTemplate = `// profiles, credentials and the run store used by "go run ./cmd/finscraper"
{
  timezone: "",
  store: {file: "<dev_state>/runs.db"},
  profiles: [],
  credentials: {},
}
`

func writeTemplate(name, contents string) error {
	path, err := devenv.GetStateFilePath(name)
	if err != nil {
		return err
	}
	_, err = os.Stat(path)
	if err == nil {
		return nil
	}
	fmt.Println("writing template", path)
	return os.WriteFile(path, []byte(contents), 0600)
}

func writeTemplates() error {
	err := writeTemplate("portal_test.json5", portalTestTemplate)
	if err != nil {
		return err
	}
	return writeTemplate("config.json5", configTemplate)
}

func PrintConfigLocations() {
	slog.Info("live portal tests read dev/.state/portal_test.json5 and are skipped while it is empty, run `go test -v` to see which tests were skipped.")
}
