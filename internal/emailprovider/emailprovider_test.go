package emailprovider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/baitlabs/phishflow/backend/internal/campaigns"
)

type fakeLookup struct {
	mx     []string
	mxErr  error
	txt    []string
	txtErr error
}

func (f *fakeLookup) MX(context.Context, string) ([]string, error)  { return f.mx, f.mxErr }
func (f *fakeLookup) TXT(context.Context, string) ([]string, error) { return f.txt, f.txtErr }

func TestResolve(t *testing.T) {
	tests := []struct {
		name   string
		lookup fakeLookup
		want   campaigns.EmailProvider
	}{
		{
			"office365",
			fakeLookup{mx: []string{"corp-example.mail.protection.outlook.com."}},
			campaigns.ProviderOffice365,
		},
		{
			"google with spf",
			fakeLookup{
				mx:  []string{"aspmx.l.google.com.", "alt1.aspmx.l.google.com."},
				txt: []string{"v=spf1 include: _spf.google.com ~all"},
			},
			campaigns.ProviderGoogle,
		},
		{
			"google spf strict all",
			fakeLookup{
				mx:  []string{"aspmx.l.google.com."},
				txt: []string{"v=spf1 include:_spf.google.com -all"},
			},
			campaigns.ProviderGoogle,
		},
		{
			"google mx without spf",
			fakeLookup{
				mx:  []string{"aspmx.l.google.com."},
				txt: []string{"v=spf1 include:spf.otherhost.com ~all"},
			},
			campaigns.ProviderUnknown,
		},
		{
			"google mx with txt failure",
			fakeLookup{
				mx:     []string{"aspmx.l.google.com."},
				txtErr: errors.New("servfail"),
			},
			campaigns.ProviderUnknown,
		},
		{
			"unknown mx",
			fakeLookup{mx: []string{"mx.fastmail.com."}},
			campaigns.ProviderUnknown,
		},
		{
			"mx lookup failure",
			fakeLookup{mxErr: errors.New("i/o timeout")},
			campaigns.ProviderUnknown,
		},
		{
			"no records",
			fakeLookup{},
			campaigns.ProviderUnknown,
		},
		{
			// Substring is not enough, the suffix has to terminate the
			// host.
			"suffix must anchor",
			fakeLookup{mx: []string{"protection.outlook.com.evil.example."}},
			campaigns.ProviderUnknown,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lookup := tt.lookup
			resolver := NewWithLookup(&lookup, 0)
			provider, err := resolver.Resolve(context.Background(), "Corp.Example")
			require.NoError(t, err)
			assert.Equal(t, tt.want, provider)
		})
	}
}

func TestResolveHonorsContext(t *testing.T) {
	resolver := NewWithLookup(&fakeLookup{}, 0.0001)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	// First token is available immediately, burn it.
	_, err := resolver.Resolve(context.Background(), "a.example")
	require.NoError(t, err)

	_, err = resolver.Resolve(ctx, "b.example")
	assert.Error(t, err)
}
