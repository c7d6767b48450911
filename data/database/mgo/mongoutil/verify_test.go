package mongoutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAndSetDefaults(t *testing.T) {
	c := &Config{Address: []string{"h1:27017", "h2:27017"}, Database: "pps", Username: "root", Password: "p@ss"}
	require.NoError(t, c.ValidateAndSetDefaults())
	assert.Equal(t, defaultMaxPoolSize, c.MaxPoolSize)
	assert.Equal(t, defaultMaxRetry, c.MaxRetry)
	assert.Equal(t, "mongodb://root:p%40ss@h1:27017,h2:27017/pps?authSource=pps&maxPoolSize=100", c.Uri)

	withURI := &Config{Uri: "mongodb://localhost:27017", Database: "pps", MaxPoolSize: 5}
	require.NoError(t, withURI.ValidateAndSetDefaults())
	assert.Equal(t, "mongodb://localhost:27017", withURI.Uri)
	assert.Equal(t, 5, withURI.MaxPoolSize)

	assert.Error(t, (&Config{Database: "pps"}).ValidateAndSetDefaults())
	assert.Error(t, (&Config{Uri: "mongodb://localhost"}).ValidateAndSetDefaults())
}
