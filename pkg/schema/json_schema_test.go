package schema

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type JsonSchemaTestSuite struct {
	suite.Suite
}

func TestJsonSchemaTestSuite(t *testing.T) {
	suite.Run(t, new(JsonSchemaTestSuite))
}

func (suite *JsonSchemaTestSuite) TestToJSONSchema() {
	type TestConfig struct {
		Symbol   string `yaml:"symbol" jsonschema:"title=Symbol,description=The symbol to trade,default=BTCUSDT"`
		Interval string `yaml:"throttle_interval" jsonschema:"title=Throttle Interval,default=500ms"`
	}

	schema, err := ToJSONSchema(TestConfig{})
	suite.NoError(err)
	suite.Contains(schema, "throttle_interval")
	suite.Contains(schema, "BTCUSDT")
}
