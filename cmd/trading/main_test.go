package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/suite"
)

const validConfig = `
exchange:
  provider: binance-paper
  api_key: key
  secret_key: secret
trades:
  - id: btc
    symbol: BTCUSDT
    asset: USDT
    side: SELL
    entry:
      stop_loss_threshold: 2%
      pullback_threshold: 1%
      targets:
        - price: 100
          size: 10%
    exit:
      stop_loss_threshold: 2%
      pullback_threshold: 1%
      targets:
        - price: 3%
          size: 100%
`

type MainTestSuite struct {
	suite.Suite
	tempDir string
	envFile string
}

func TestMainTestSuite(t *testing.T) {
	suite.Run(t, new(MainTestSuite))
}

func (s *MainTestSuite) SetupTest() {
	s.tempDir = s.T().TempDir()
	s.envFile = s.writeFile("empty.env", "")
}

func (s *MainTestSuite) writeFile(name string, content string) string {
	path := filepath.Join(s.tempDir, name)
	s.Require().NoError(os.WriteFile(path, []byte(content), 0644))

	return path
}

func (s *MainTestSuite) run(args ...string) (string, error) {
	var out bytes.Buffer

	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out

	err := app.Run(context.Background(), append([]string{"trading"}, args...))

	return out.String(), err
}

func (s *MainTestSuite) TestSchema() {
	out, err := s.run("schema")
	s.Require().NoError(err)
	s.Contains(out, `"trades"`)
	s.Contains(out, `"failure_policy"`)
}

func (s *MainTestSuite) TestValidate() {
	path := s.writeFile("config.yaml", validConfig)

	out, err := s.run("validate", "--config", path, "--env-file", s.envFile)
	s.Require().NoError(err)
	s.Contains(out, "config is valid: 1 trades, 2 strategies")
}

func (s *MainTestSuite) TestValidateInvalidConfig() {
	path := s.writeFile("config.yaml", "exchange:\n  provider: kraken\ntrades: []\n")

	_, err := s.run("validate", "-c", path, "--env-file", s.envFile)
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid config")
}

func (s *MainTestSuite) TestValidateRequiresConfigFlag() {
	_, err := s.run("validate")
	s.Error(err)
}
