package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCredentialHeader(t *testing.T) {
	assert.Equal(t, "sessionKey="+testSessionKey+"; lastActiveOrg=org-1", testCredential().Header())
	assert.Equal(t, "", Credential{}.Header())
}

func TestCredentialSessionKey(t *testing.T) {
	key, ok := testCredential().SessionKey()
	require.True(t, ok)
	assert.Equal(t, testSessionKey, key.Value)

	_, ok = Credential{{Name: "sessionkey", Value: "lowercase does not count"}}.SessionKey()
	assert.False(t, ok)
	assert.False(t, Credential(nil).HasSessionKey())
}

func TestEnvCredential(t *testing.T) {
	cred := envCredential("sk-env")
	require.Len(t, cred, 1)
	assert.Equal(t, Cookie{Name: "sessionKey", Value: "sk-env", Domain: ".claude.ai", Path: "/"}, cred[0])
	assert.Equal(t, "sessionKey=sk-env", cred.Header())
}
