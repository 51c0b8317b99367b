// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package verification_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"codeberg.org/oliverandrich/studyhub/internal/cooldown"
	"codeberg.org/oliverandrich/studyhub/internal/models"
	"codeberg.org/oliverandrich/studyhub/internal/repository"
	"codeberg.org/oliverandrich/studyhub/internal/services/verification"
	"codeberg.org/oliverandrich/studyhub/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fixture struct {
	svc    *verification.Service
	repo   *repository.Repository
	mailer *testutil.FakeMailer
	now    time.Time
}

func newFixture(t *testing.T, cooldownWindow time.Duration) *fixture {
	t.Helper()
	_, repo := testutil.NewTestDB(t)
	f := &fixture{repo: repo, mailer: &testutil.FakeMailer{}, now: time.Now()}
	f.svc = verification.NewService(repo, f.mailer, cooldown.NewMemory(), 10*time.Minute, cooldownWindow)
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func TestGenerateCode(t *testing.T) {
	for range 200 {
		code, err := verification.GenerateCode()
		require.NoError(t, err)
		require.Len(t, code, 6)
		assert.GreaterOrEqual(t, code, "100000")
		assert.LessOrEqual(t, code, "999999")
	}
}

func TestIssue_SendsAndStores(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))

	require.Len(t, f.mailer.Codes, 1)
	sent := f.mailer.Codes[0]
	assert.Equal(t, "a@x.com", sent.To)
	assert.Equal(t, models.PurposeRegister, sent.Purpose)

	assert.NoError(t, f.svc.Check(ctx, "a@x.com", sent.Code, models.PurposeRegister))
}

func TestIssue_InvalidEmail(t *testing.T) {
	f := newFixture(t, 0)

	err := f.svc.Issue(context.Background(), "not-an-email", models.PurposeRegister)

	assert.ErrorIs(t, err, verification.ErrInvalidEmail)
	assert.Empty(t, f.mailer.Codes)
}

func TestIssue_SupersedesPreviousCodes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))
	codeA := f.mailer.LastCode()
	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))
	codeB := f.mailer.LastCode()

	if codeA != codeB {
		assert.ErrorIs(t, f.svc.Check(ctx, "a@x.com", codeA, models.PurposeRegister), verification.ErrInvalidCode)
	}
	assert.NoError(t, f.svc.Check(ctx, "a@x.com", codeB, models.PurposeRegister))
}

func TestIssue_SupersedesAcrossPurposes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.repo.CreateVerificationCode(ctx, &models.EmailVerification{
		Email: "a@x.com", Code: "111111", Purpose: models.PurposeReset, ExpiresAt: f.now.Add(time.Minute),
	}))

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))

	_, err := f.repo.GetVerificationCode(ctx, "a@x.com", "111111", models.PurposeReset)
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestIssue_PrunesLapsedCodes(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	seed := func(address, code string, expiresIn time.Duration) {
		require.NoError(t, f.repo.CreateVerificationCode(ctx, &models.EmailVerification{
			Email: address, Code: code, Purpose: models.PurposeRegister, ExpiresAt: f.now.Add(expiresIn),
		}))
	}
	seed("stale@x.com", "111111", -time.Hour)
	seed("recent@x.com", "222222", -time.Minute)
	seed("live@x.com", "333333", time.Minute)

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))

	_, err := f.repo.GetVerificationCode(ctx, "stale@x.com", "111111", models.PurposeRegister)
	assert.ErrorIs(t, err, repository.ErrNotFound)

	// lapsed within the last TTL still reports as expired
	assert.ErrorIs(t, f.svc.Check(ctx, "recent@x.com", "222222", models.PurposeRegister), verification.ErrCodeExpired)
	assert.NoError(t, f.svc.Check(ctx, "live@x.com", "333333", models.PurposeRegister))
}

func TestIssue_Cooldown(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))

	err := f.svc.Issue(ctx, "a@x.com", models.PurposeRegister)

	var cd *verification.CooldownError
	require.ErrorAs(t, err, &cd)
	assert.Positive(t, cd.RetryAfter)
	assert.ErrorIs(t, err, cooldown.ErrCoolingDown)
	assert.Len(t, f.mailer.Codes, 1)

	// other purposes and addresses are independent
	assert.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeReset))
	assert.NoError(t, f.svc.Issue(ctx, "b@x.com", models.PurposeRegister))
}

func TestIssue_MailFailureReleasesCooldown(t *testing.T) {
	f := newFixture(t, time.Minute)
	ctx := context.Background()

	f.mailer.Err = errors.New("smtp down")
	require.Error(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))

	f.mailer.Err = nil
	assert.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))
}

func TestCheck_Order(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	seed := func(code string, used bool, expiresIn time.Duration) {
		v := &models.EmailVerification{
			Email: "a@x.com", Code: code, Purpose: models.PurposeRegister, ExpiresAt: f.now.Add(expiresIn),
		}
		require.NoError(t, f.repo.CreateVerificationCode(ctx, v))
		if used {
			require.NoError(t, f.repo.MarkVerificationCodeUsed(ctx, v.ID))
		}
	}
	seed("111111", false, time.Minute)
	seed("222222", true, time.Minute)
	seed("333333", false, -time.Minute)
	seed("444444", true, -time.Minute)

	tests := []struct {
		code    string
		purpose string
		want    error
	}{
		{"111111", models.PurposeRegister, nil},
		{"111111", models.PurposeReset, verification.ErrInvalidCode},
		{"999999", models.PurposeRegister, verification.ErrInvalidCode},
		{"", models.PurposeRegister, verification.ErrInvalidCode},
		{"222222", models.PurposeRegister, verification.ErrCodeUsed},
		{"333333", models.PurposeRegister, verification.ErrCodeExpired},
		{"444444", models.PurposeRegister, verification.ErrCodeUsed},
	}

	for _, tt := range tests {
		t.Run(tt.code+"/"+tt.purpose, func(t *testing.T) {
			err := f.svc.Check(ctx, "a@x.com", tt.code, tt.purpose)
			if tt.want == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCheck_DoesNotConsume(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))
	code := f.mailer.LastCode()

	require.NoError(t, f.svc.Check(ctx, "a@x.com", code, models.PurposeRegister))
	assert.NoError(t, f.svc.Check(ctx, "a@x.com", code, models.PurposeRegister))
}

func TestConsume_Once(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeReset))
	code := f.mailer.LastCode()

	consume := func() error {
		return f.repo.WithTx(ctx, func(tx *repository.Repository) error {
			return f.svc.Consume(ctx, tx, "a@x.com", code, models.PurposeReset)
		})
	}

	require.NoError(t, consume())
	assert.ErrorIs(t, consume(), verification.ErrCodeUsed)
	assert.ErrorIs(t, f.svc.Check(ctx, "a@x.com", code, models.PurposeReset), verification.ErrCodeUsed)
}

func TestConsume_Expired(t *testing.T) {
	f := newFixture(t, 0)
	ctx := context.Background()

	require.NoError(t, f.svc.Issue(ctx, "a@x.com", models.PurposeRegister))
	code := f.mailer.LastCode()

	f.now = f.now.Add(11 * time.Minute)

	err := f.repo.WithTx(ctx, func(tx *repository.Repository) error {
		return f.svc.Consume(ctx, tx, "a@x.com", code, models.PurposeRegister)
	})
	assert.ErrorIs(t, err, verification.ErrCodeExpired)
}

func TestCooldownError(t *testing.T) {
	err := &verification.CooldownError{RetryAfter: 42 * time.Second}

	assert.Contains(t, err.Error(), "42s")
	assert.ErrorIs(t, err, cooldown.ErrCoolingDown)
}
