package checkout

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizePhone(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"+7 (999) 123-45-67", "79991234567", false},
		{"89991234567", "79991234567", false},
		{"79991234567", "79991234567", false},
		{"8 999 123 45 67", "79991234567", false},
		{"123", "", true},
		{"999912345678", "", true},
		{"19991234567", "", true},
		{"", "", true},
		// Non-ASCII digits are formatting, not digits.
		{"7٨999123456", "", true},
		{"٧٩٩٩١٢٣٤٥٦٧", "", true},
	}

	for _, tc := range cases {
		got, err := NormalizePhone(tc.in)
		if tc.wantErr {
			require.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		require.Equal(t, tc.want, got)
	}
}

func TestValidateEmail(t *testing.T) {
	require.NoError(t, ValidateEmail(""))
	require.NoError(t, ValidateEmail("ivan@example.ru"))
	require.NoError(t, ValidateEmail("a@b.c"))

	require.Error(t, ValidateEmail("a@b"))
	require.Error(t, ValidateEmail("@example.ru"))
	require.Error(t, ValidateEmail("ivan@"))
	require.Error(t, ValidateEmail("ivan.example.ru"))
	require.Error(t, ValidateEmail("ivan@.ru"))
	require.Error(t, ValidateEmail("ivan@example."))
}
