package view

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRouterTransitions(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	require.Equal(t, SignUp, r.Current())

	require.True(t, r.Navigate(Login))
	require.Equal(t, Login, r.Current())
	require.False(t, r.Navigate(Login))
	require.False(t, r.Navigate(Home))
	require.Equal(t, Login, r.Current())

	r.SessionChanged(true)
	require.Equal(t, Home, r.Current())
	require.False(t, r.Navigate(SignUp))
	require.Equal(t, Home, r.Current())

	r.SessionChanged(false)
	require.Equal(t, SignUp, r.Current())
	require.True(t, r.Navigate(Login))
}

func TestRouterSessionLossKeepsAuthView(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	r.Navigate(Login)
	r.SessionChanged(false)
	require.Equal(t, Login, r.Current())
}

func TestParse(t *testing.T) {
	t.Parallel()

	for _, s := range []string{"signup", "login", "home"} {
		v, ok := Parse(s)
		require.True(t, ok)
		require.Equal(t, View(s), v)
	}
	_, ok := Parse("Home")
	require.False(t, ok)
	_, ok = Parse("")
	require.False(t, ok)
}

func TestRouterConcurrent(t *testing.T) {
	t.Parallel()

	r := NewRouter()
	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			switch i % 3 {
			case 0:
				r.Navigate(Login)
			case 1:
				r.Navigate(SignUp)
			default:
				_ = r.Current()
			}
		}(i)
	}
	wg.Wait()
	r.SessionChanged(true)
	require.Equal(t, Home, r.Current())
}
