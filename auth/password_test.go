package auth

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_Hash_And_Compare_Password(t *testing.T) {
	req := require.New(t)

	hash, err := HashPassword("Sup3rSecret")
	req.NoError(err)
	req.NotEqual("Sup3rSecret", hash)

	req.True(ComparePassword("Sup3rSecret", hash))
	req.False(ComparePassword("WrongPassword1", hash))
}

func Test_Hashes_Are_Salted(t *testing.T) {
	req := require.New(t)

	first, err := HashPassword("Sup3rSecret")
	req.NoError(err)
	second, err := HashPassword("Sup3rSecret")
	req.NoError(err)

	req.NotEqual(first, second)
}
