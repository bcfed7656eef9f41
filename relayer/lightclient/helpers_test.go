package lightclient_test

import (
	"crypto/sha256"
	"fmt"
	"time"

	"github.com/cosmos/ibc-relayer/relayer/commitment"
	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/lightclient"
	"github.com/stretchr/testify/require"
)

const testChainID = "test-1"

var genesisTime = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)

func appHash(label string) []byte {
	h := sha256.Sum256([]byte(label))
	return h[:]
}

func privValidators(prefix string, n int, power int64) []lightclient.PrivValidator {
	privs := make([]lightclient.PrivValidator, n)
	for i := range privs {
		privs[i] = lightclient.NewPrivValidator(fmt.Sprintf("%s-%d", prefix, i), power)
	}
	return privs
}

// testClient is a client state tracking testChainID from a trusted genesis
// at height 1.
type testClient struct {
	privs       []lightclient.PrivValidator
	vals        *lightclient.ValidatorSet
	clientState lightclient.ClientState
	genesis     lightclient.ConsensusState
}

func newTestClient(t require.TestingT) *testClient {
	privs := privValidators("val", 4, 10)
	vals := lightclient.NewValidatorSetFromPrivs(privs)
	cs := lightclient.NewClientState(testChainID, lightclient.HeightOf(testChainID, 1))
	require.NoError(t, cs.Validate())
	return &testClient{
		privs:       privs,
		vals:        vals,
		clientState: cs,
		genesis: lightclient.ConsensusState{
			Timestamp:          genesisTime,
			Root:               commitment.NewRoot(appHash("genesis")),
			NextValidatorsHash: vals.Hash(),
		},
	}
}

type headerOpts struct {
	height        uint64
	time          time.Time
	trustedHeight uint64
	appHash       []byte
	vals          *lightclient.ValidatorSet
	signers       []lightclient.PrivValidator
	trustedVals   *lightclient.ValidatorSet
}

func (tc *testClient) header(t require.TestingT, o headerOpts) *lightclient.Header {
	if o.vals == nil {
		o.vals = tc.vals
	}
	if o.signers == nil {
		o.signers = tc.privs
	}
	if o.trustedVals == nil {
		o.trustedVals = tc.vals
	}
	if o.trustedHeight == 0 {
		o.trustedHeight = 1
	}
	if o.appHash == nil {
		o.appHash = appHash(fmt.Sprintf("block-%d", o.height))
	}
	sh, err := lightclient.NewSignedHeader(lightclient.BlockHeader{
		ChainID: testChainID,
		Height:  lightclient.HeightOf(testChainID, o.height),
		Time:    o.time,
		AppHash: o.appHash,
	}, o.vals, o.signers)
	require.NoError(t, err)
	return &lightclient.Header{
		SignedHeader:      sh,
		ValidatorSet:      o.vals,
		TrustedHeight:     lightclient.HeightOf(testChainID, o.trustedHeight),
		TrustedValidators: o.trustedVals,
	}
}

func (tc *testClient) tracker(t require.TestingT) *lightclient.Tracker {
	tr, err := lightclient.NewTracker(ibc.FormatClientIdentifier(0), tc.clientState, tc.genesis)
	require.NoError(t, err)
	return tr
}
