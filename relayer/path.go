package relayer

import (
	"context"
	"fmt"
	"sort"

	"github.com/cosmos/ibc-relayer/relayer/ibc"
	"github.com/cosmos/ibc-relayer/relayer/processor"
	"github.com/cosmos/ibc-relayer/relayer/provider"
	"golang.org/x/sync/errgroup"
)

const (
	check = "✔"
	xIcon = "✘"
)

// Paths represent connection paths between chains
type Paths map[string]*Path

// Get returns the configuration for a given path
func (p Paths) Get(name string) (path *Path, err error) {
	if pth, ok := p[name]; ok {
		path = pth
	} else {
		err = fmt.Errorf("path with name %s does not exist", name)
	}
	return
}

// MustGet panics if path is not found
func (p Paths) MustGet(name string) *Path {
	pth, err := p.Get(name)
	if err != nil {
		panic(err)
	}
	return pth
}

// Add adds a path by its name
func (p Paths) Add(name string, path *Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	if _, found := p[name]; found {
		return fmt.Errorf("path with name %s already exists", name)
	}
	p[name] = path
	return nil
}

// Names returns the sorted path names.
func (p Paths) Names() []string {
	names := make([]string, 0, len(p))
	for name := range p {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// AddForce overwrites an existing path with that name
func (p Paths) AddForce(name string, path *Path) error {
	if err := path.Validate(); err != nil {
		return err
	}
	p[name] = path
	return nil
}

// PathsFromChains returns the paths from the config between two chains
func (p Paths) PathsFromChains(src, dst string) (Paths, error) {
	out := Paths{}
	for name, path := range p {
		if (path.Dst.ChainID == src || path.Src.ChainID == src) && (path.Dst.ChainID == dst || path.Src.ChainID == dst) {
			out[name] = path
		}
	}
	if len(out) == 0 {
		return Paths{}, fmt.Errorf("failed to find path in config between chains %s and %s", src, dst)
	}
	return out, nil
}

// Path represents a pair of chains and the identifiers needed to relay over
// them. Order and Version describe the channel created when the path is
// linked.
type Path struct {
	Src     *PathEnd      `yaml:"src" json:"src"`
	Dst     *PathEnd      `yaml:"dst" json:"dst"`
	Order   string        `yaml:"order,omitempty" json:"order,omitempty"`
	Version string        `yaml:"version,omitempty" json:"version,omitempty"`
	Filter  ChannelFilter `yaml:"src-channel-filter" json:"src-channel-filter"`
}

// ChannelFilter provides the means to either creating an allowlist or a
// denylist of channels on the src chain which will be used to narrow down the
// list of channels a user wants to relay on.
type ChannelFilter struct {
	Rule        string   `yaml:"rule" json:"rule"`
	ChannelList []string `yaml:"channel-list" json:"channel-list"`
}

// ValidateChannelFilterRule verifies that the configured ChannelFilter rule is
// set to an appropriate value.
func (p *Path) ValidateChannelFilterRule() error {
	if p.Filter.Rule != processor.RuleAllowList && p.Filter.Rule != processor.RuleDenyList && p.Filter.Rule != "" {
		return fmt.Errorf("%s is not a valid channel filter rule, please ensure your channel filter rule is `%s`, '%s', or an empty string",
			p.Filter.Rule, processor.RuleAllowList, processor.RuleDenyList)
	}
	return nil
}

// Validate checks that a path is valid
func (p *Path) Validate() error {
	if p.Src == nil || p.Dst == nil {
		return fmt.Errorf("path must have a src and a dst")
	}
	if err := p.Src.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid src: %w", err)
	}
	if err := p.Dst.ValidateBasic(); err != nil {
		return fmt.Errorf("invalid dst: %w", err)
	}
	if p.Src.ChainID == p.Dst.ChainID {
		return fmt.Errorf("src and dst must be different chains, both are %s", p.Src.ChainID)
	}
	if p.Order != "" && ibc.OrderFromString(p.Order) == ibc.NoneOrder {
		return fmt.Errorf("invalid order %q, expected 'ordered' or 'unordered'", p.Order)
	}
	for _, ch := range p.Filter.ChannelList {
		if err := ibc.ValidateChannelID(ch); err != nil {
			return fmt.Errorf("invalid channel %q in filter: %w", ch, err)
		}
	}
	return p.ValidateChannelFilterRule()
}

// Ordering returns the channel order of the path, unordered when unset.
func (p *Path) Ordering() ibc.Order {
	if o := ibc.OrderFromString(p.Order); o != ibc.NoneOrder {
		return o
	}
	return ibc.Unordered
}

// End returns the proper end given a chainID
func (p *Path) End(chainID string) *PathEnd {
	if p.Dst.ChainID == chainID {
		return p.Dst
	}
	if p.Src.ChainID == chainID {
		return p.Src
	}
	return &PathEnd{}
}

func (p *Path) String() string {
	return fmt.Sprintf("[ ] %s ->\n %s", p.Src.String(), p.Dst.String())
}

// filters returns the channel filter of the src chain and its counterpart
// for the dst chain.
func (p *Path) filters() (src, dst []ibc.ChannelKey) {
	for _, ch := range p.Filter.ChannelList {
		src = append(src, ibc.ChannelKey{ChannelID: ch})
		dst = append(dst, ibc.ChannelKey{CounterpartyChannelID: ch})
	}
	return src, dst
}

// GenPath generates a path with unspecified client, connection and channel
// identifiers given chain ids and port ids.
func GenPath(srcChainID, dstChainID, srcPortID, dstPortID, order, version string) *Path {
	return &Path{
		Src: &PathEnd{
			ChainID: srcChainID,
			PortID:  srcPortID,
		},
		Dst: &PathEnd{
			ChainID: dstChainID,
			PortID:  dstPortID,
		},
		Order:   order,
		Version: version,
	}
}

// PathStatus holds the status of the primitives in the path
type PathStatus struct {
	Chains     bool `yaml:"chains" json:"chains"`
	Clients    bool `yaml:"clients" json:"clients"`
	Connection bool `yaml:"connection" json:"connection"`
	Channel    bool `yaml:"channel" json:"channel"`
}

// PathWithStatus is used for showing the status of the path
type PathWithStatus struct {
	Path   *Path      `yaml:"path" json:"chains"`
	Status PathStatus `yaml:"status" json:"status"`
}

// QueryPathStatus returns an instance of the path struct with some attached
// data about the current status of the path
func (p *Path) QueryPathStatus(ctx context.Context, src, dst *Chain) *PathWithStatus {
	var (
		srch, dsth       ibc.Height
		srcConn, dstConn ibc.ConnectionEnd
		srcChan, dstChan ibc.ChannelEnd

		out = &PathWithStatus{Path: p}
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		srch, err = src.ChainProvider.QueryLatestHeight(egCtx)
		return err
	})
	eg.Go(func() error {
		var err error
		dsth, err = dst.ChainProvider.QueryLatestHeight(egCtx)
		return err
	})
	if err := eg.Wait(); err != nil {
		return out
	}
	out.Status.Chains = true
	if p.Src.ClientID == "" || p.Dst.ClientID == "" {
		return out
	}

	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() error {
		_, _, err := provider.QueryClientState(egCtx, src.ChainProvider, srch, p.Src.ClientID)
		return err
	})
	eg.Go(func() error {
		_, _, err := provider.QueryClientState(egCtx, dst.ChainProvider, dsth, p.Dst.ClientID)
		return err
	})
	if err := eg.Wait(); err != nil {
		return out
	}
	out.Status.Clients = true
	if p.Src.ConnectionID == "" || p.Dst.ConnectionID == "" {
		return out
	}

	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		srcConn, _, err = provider.QueryConnection(egCtx, src.ChainProvider, srch, p.Src.ConnectionID)
		return err
	})
	eg.Go(func() error {
		var err error
		dstConn, _, err = provider.QueryConnection(egCtx, dst.ChainProvider, dsth, p.Dst.ConnectionID)
		return err
	})
	if err := eg.Wait(); err != nil || srcConn.State != ibc.ConnectionOpen || dstConn.State != ibc.ConnectionOpen {
		return out
	}
	out.Status.Connection = true
	if p.Src.ChannelID == "" || p.Dst.ChannelID == "" {
		return out
	}

	eg, egCtx = errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		srcChan, _, err = provider.QueryChannel(egCtx, src.ChainProvider, srch, portOrDefault(p.Src.PortID), p.Src.ChannelID)
		return err
	})
	eg.Go(func() error {
		var err error
		dstChan, _, err = provider.QueryChannel(egCtx, dst.ChainProvider, dsth, portOrDefault(p.Dst.PortID), p.Dst.ChannelID)
		return err
	})
	if err := eg.Wait(); err != nil || srcChan.State != ibc.ChannelOpen || dstChan.State != ibc.ChannelOpen {
		return out
	}
	out.Status.Channel = true
	return out
}

// PrintString prints a string representations of the path status
func (ps *PathWithStatus) PrintString(name string) string {
	pth := ps.Path
	return fmt.Sprintf(`Path "%s":
  SRC(%s)
    ClientID:     %s
    ConnectionID: %s
    ChannelID:    %s
    PortID:       %s
  DST(%s)
    ClientID:     %s
    ConnectionID: %s
    ChannelID:    %s
    PortID:       %s
  STATUS:
    Chains:       %s
    Clients:      %s
    Connection:   %s
    Channel:      %s`, name, pth.Src.ChainID,
		pth.Src.ClientID, pth.Src.ConnectionID, pth.Src.ChannelID, pth.Src.PortID,
		pth.Dst.ChainID, pth.Dst.ClientID, pth.Dst.ConnectionID, pth.Dst.ChannelID, pth.Dst.PortID,
		Checkmark(ps.Status.Chains), Checkmark(ps.Status.Clients), Checkmark(ps.Status.Connection), Checkmark(ps.Status.Channel))
}

// Checkmark renders a status flag.
func Checkmark(status bool) string {
	if status {
		return check
	}
	return xIcon
}

func portOrDefault(portID string) string {
	if portID == "" {
		return ibc.TransferPort
	}
	return portID
}
