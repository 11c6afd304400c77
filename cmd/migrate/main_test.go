package main

import (
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeMigrator struct {
	upErr   error
	steps   int
	down    bool
	forced  int
	version uint
	verErr  error
}

func (f *fakeMigrator) Up() error               { return f.upErr }
func (f *fakeMigrator) Steps(n int) error       { f.steps = n; return nil }
func (f *fakeMigrator) Down() error             { f.down = true; return nil }
func (f *fakeMigrator) Force(version int) error { f.forced = version; return nil }
func (f *fakeMigrator) Version() (uint, bool, error) {
	return f.version, false, f.verErr
}

func TestRunDefaultsToUp(t *testing.T) {
	msg, err := run(&fakeMigrator{upErr: migrate.ErrNoChange}, nil)
	require.NoError(t, err)
	assert.Equal(t, "migrations complete", msg)
}

func TestRunDownSteps(t *testing.T) {
	m := &fakeMigrator{}
	_, err := run(m, []string{"down", "2"})
	require.NoError(t, err)
	assert.Equal(t, -2, m.steps)
	assert.False(t, m.down)

	_, err = run(m, []string{"down", "zero"})
	assert.Error(t, err)

	_, err = run(m, []string{"down"})
	require.NoError(t, err)
	assert.True(t, m.down)
}

func TestRunForceAndVersion(t *testing.T) {
	m := &fakeMigrator{version: 6}
	_, err := run(m, []string{"force", "3"})
	require.NoError(t, err)
	assert.Equal(t, 3, m.forced)

	msg, err := run(m, []string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "version 6 (dirty=false)", msg)

	msg, err = run(&fakeMigrator{verErr: migrate.ErrNilVersion}, []string{"version"})
	require.NoError(t, err)
	assert.Equal(t, "no migrations applied", msg)
}

func TestRunUnknownCommand(t *testing.T) {
	_, err := run(&fakeMigrator{}, []string{"sideways"})
	assert.Error(t, err)
}
