package evm

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"

	"baton/contexts/relay-core/relay-service/domain/entities"
	"baton/contexts/relay-core/relay-service/ports"
)

// Node is one EVM JSON-RPC connection serving the reader and submitter ports
// for a single ledger. Raw broadcasts go through the rpc client so the bytes
// signed by the relayer key are sent untouched.
type Node struct {
	name    entities.LedgerName
	chainID *big.Int
	eth     *ethclient.Client
	raw     *rpc.Client

	nonces      common.Address
	registry    common.Address
	registryABI abi.ABI
}

// Dial connects a node and pins its chain id. The registry address is the
// contract answering isRegistered for this ledger: the catalog registry on the
// catalog ledger, the access registry on the access ledger.
func Dial(ctx context.Context, name entities.LedgerName, rpcURL, noncesAddr, registryAddr string) (*Node, error) {
	rawClient, err := rpc.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("dial %s ledger: %w", name, err)
	}
	eth := ethclient.NewClient(rawClient)

	chainID, err := eth.ChainID(ctx)
	if err != nil {
		rawClient.Close()
		return nil, fmt.Errorf("read %s chain id: %w", name, err)
	}

	nonces, err := parseAddress(noncesAddr, "intent nonces")
	if err != nil {
		rawClient.Close()
		return nil, err
	}
	registry, err := parseAddress(registryAddr, "registry")
	if err != nil {
		rawClient.Close()
		return nil, err
	}

	registryABI := catalogABI
	if name == entities.LedgerAccess {
		registryABI = accessABI
	}

	return &Node{
		name:        name,
		chainID:     chainID,
		eth:         eth,
		raw:         rawClient,
		nonces:      nonces,
		registry:    registry,
		registryABI: registryABI,
	}, nil
}

func (n *Node) Close() {
	n.raw.Close()
}

func (n *Node) LedgerName() entities.LedgerName {
	return n.name
}

func (n *Node) ChainID() *big.Int {
	return new(big.Int).Set(n.chainID)
}

func (n *Node) callView(ctx context.Context, to common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("pack %s: %w", method, err)
	}
	out, err := n.eth.CallContract(ctx, ethereum.CallMsg{To: &to, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("call %s on %s: %w", method, n.name, err)
	}
	values, err := parsed.Unpack(method, out)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", method, err)
	}
	return values, nil
}

func (n *Node) EntityExists(ctx context.Context, id [32]byte) (bool, error) {
	values, err := n.callView(ctx, n.registry, n.registryABI, "isRegistered", id)
	if err != nil {
		return false, err
	}
	registered, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("isRegistered returned %T", values[0])
	}
	return registered, nil
}

func (n *Node) IntentNonce(ctx context.Context, actor string) (*big.Int, error) {
	values, err := n.callView(ctx, n.nonces, noncesABI, "nonces", common.HexToAddress(actor))
	if err != nil {
		return nil, err
	}
	counter, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("nonces returned %T", values[0])
	}
	return counter, nil
}

func (n *Node) PendingNonce(ctx context.Context, account string) (uint64, error) {
	return n.eth.PendingNonceAt(ctx, common.HexToAddress(account))
}

func (n *Node) SuggestFees(ctx context.Context) (ports.GasFees, error) {
	tip, err := n.eth.SuggestGasTipCap(ctx)
	if err != nil {
		return ports.GasFees{}, fmt.Errorf("suggest tip cap: %w", err)
	}
	head, err := n.eth.HeaderByNumber(ctx, nil)
	if err != nil {
		return ports.GasFees{}, fmt.Errorf("read head: %w", err)
	}
	if head.BaseFee == nil {
		price, err := n.eth.SuggestGasPrice(ctx)
		if err != nil {
			return ports.GasFees{}, fmt.Errorf("suggest gas price: %w", err)
		}
		return ports.GasFees{TipCap: price, FeeCap: price}, nil
	}
	feeCap := new(big.Int).Add(tip, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
	return ports.GasFees{TipCap: tip, FeeCap: feeCap}, nil
}

func (n *Node) EstimateGas(ctx context.Context, from string, call ports.Call) (uint64, error) {
	to := common.HexToAddress(call.To)
	return n.eth.EstimateGas(ctx, ethereum.CallMsg{
		From: common.HexToAddress(from),
		To:   &to,
		Data: call.Data,
	})
}

func (n *Node) Broadcast(ctx context.Context, raw []byte) (string, error) {
	var hash common.Hash
	if err := n.raw.CallContext(ctx, &hash, "eth_sendRawTransaction", hexutil.Encode(raw)); err != nil {
		return "", err
	}
	return hash.Hex(), nil
}

func (n *Node) Receipt(ctx context.Context, txHash string) (entities.Receipt, bool, error) {
	receipt, err := n.eth.TransactionReceipt(ctx, common.HexToHash(txHash))
	if errors.Is(err, ethereum.NotFound) {
		return entities.Receipt{}, false, nil
	}
	if err != nil {
		return entities.Receipt{}, false, err
	}
	return entities.Receipt{
		TxHash:      receipt.TxHash.Hex(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		Status:      receipt.Status,
	}, true, nil
}

// CatalogNode extends a catalog-ledger node with the read surface relay
// operations check before spending gas.
type CatalogNode struct {
	*Node
	names    common.Address
	profiles common.Address
}

func NewCatalogNode(node *Node, namesAddr, profilesAddr string) (*CatalogNode, error) {
	names, err := parseAddress(namesAddr, "name registry")
	if err != nil {
		return nil, err
	}
	profiles, err := parseAddress(profilesAddr, "profile records")
	if err != nil {
		return nil, err
	}
	return &CatalogNode{Node: node, names: names, profiles: profiles}, nil
}

func (n *CatalogNode) NameAvailable(ctx context.Context, label string) (bool, error) {
	values, err := n.callView(ctx, n.names, namesABI, "available", label)
	if err != nil {
		return false, err
	}
	available, ok := values[0].(bool)
	if !ok {
		return false, fmt.Errorf("available returned %T", values[0])
	}
	return available, nil
}

func (n *CatalogNode) ProfileText(ctx context.Context, actor, key string) (string, error) {
	values, err := n.callView(ctx, n.profiles, profilesABI, "textOf", common.HexToAddress(actor), key)
	if err != nil {
		return "", err
	}
	text, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("textOf returned %T", values[0])
	}
	return text, nil
}

func (n *CatalogNode) CoverOf(ctx context.Context, id [32]byte) (string, error) {
	values, err := n.callView(ctx, n.registry, catalogABI, "coverOf", id)
	if err != nil {
		return "", err
	}
	ref, ok := values[0].(string)
	if !ok {
		return "", fmt.Errorf("coverOf returned %T", values[0])
	}
	return ref, nil
}

var _ ports.LedgerReader = (*Node)(nil)
var _ ports.LedgerSubmitter = (*Node)(nil)
var _ ports.CatalogReader = (*CatalogNode)(nil)
