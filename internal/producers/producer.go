package producers

import (
	"context"
	"io"
	"math"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/mr-tron/base58"

	"solflow/internal/ingestion"
	"solflow/internal/logging"
	"solflow/internal/models"
)

const lamportsPerSol = 1_000_000_000

// Sink is the non-blocking enqueue target; satisfied by
// *ingestion.Channel.
type Sink interface {
	Send(trade models.TradeEvent)
}

var _ Sink = (*ingestion.Channel)(nil)

// Producer runs one program's subscription loop, decoding each
// TransactionUpdate into zero or more TradeEvents and pushing them to the
// sink via non-blocking send. Producers never block on the engine — they
// only ever touch the channel's Send method.
type Producer struct {
	client      GeyserClient
	program     models.SourceProgram
	programID   string
	commitment  string
	sink        Sink
	log         *logging.Logger
}

func New(client GeyserClient, program models.SourceProgram, programID string, sink Sink) *Producer {
	return &Producer{
		client:     client,
		program:    program,
		programID:  programID,
		commitment: "confirmed",
		sink:       sink,
		log:        logging.New("Producer/" + string(program)),
	}
}

// Run subscribes and processes updates until ctx is cancelled. When the
// stream ends or a subscribe/stream error occurs, it logs and resubscribes
// after a fixed 2s backoff rather than propagating the error — a single producer's
// outage must not affect the other programs' tasks.
func (p *Producer) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		err := p.subscribeAndProcess(ctx)
		if err == io.EOF {
			p.log.Printf("stream closed, resubscribing")
		} else if err != nil {
			p.log.Printf("subscription error, retrying: %v", err)
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(2 * time.Second):
		}
	}
}

func (p *Producer) subscribeAndProcess(ctx context.Context) error {
	stream, err := p.client.SubscribeTransactions(ctx, p.programID, p.commitment)
	if err != nil {
		return err
	}

	for {
		update, err := stream.Recv()
		if err != nil {
			return err
		}
		p.process(*update)
	}
}

// process decodes a transaction into at most one TradeEvent, for the
// token mint with the largest absolute balance change on the transaction's
// primary account; other mints that moved in the same transaction produce
// no TradeEvent. Direction follows spec section 3's BalanceDelta
// definition: positive SOL inflow to the user account is a Sell, outflow
// is a Buy.
func (p *Producer) process(update TransactionUpdate) {
	if len(update.Accounts) == 0 {
		return
	}
	userAccount := update.Accounts[0]
	if _, err := solana.PublicKeyFromBase58(userAccount); err != nil {
		p.log.Printf("skipping malformed account %q: %v", userAccount, err)
		return
	}

	solDelta := balanceDelta(update, 0, "")
	if solDelta == 0 {
		return
	}
	direction := models.Buy
	if solDelta > 0 {
		direction = models.Sell
	}

	mint, tokenDelta := primaryMintDelta(update, 0)
	if mint == "" {
		// wrapped-SOL-only transaction: outside core scope (spec section 9).
		return
	}

	trade := models.TradeEvent{
		Mint:          mint,
		Signature:     encodeSignatureBytes(update.SignatureBytes),
		SourceProgram: p.program,
		Direction:     direction,
		SolAmount:     math.Abs(float64(solDelta)) / lamportsPerSol,
		TokenAmount:   math.Abs(tokenDelta),
		UserAccount:   userAccount,
		Timestamp:     update.BlockTime,
	}
	if trade.Timestamp == 0 {
		trade.Timestamp = time.Now().Unix()
	}
	p.sink.Send(trade)
}

// balanceDelta returns the signed lamport/token-base-unit change for the
// given account index and mint ("" for native SOL) between pre and post
// balances.
func balanceDelta(update TransactionUpdate, accountIndex int, mint string) int64 {
	var pre, post int64
	for _, b := range update.PreBalances {
		if b.AccountIndex == accountIndex && b.Mint == mint {
			pre = int64(b.Amount)
		}
	}
	for _, b := range update.PostBalances {
		if b.AccountIndex == accountIndex && b.Mint == mint {
			post = int64(b.Amount)
		}
	}
	return post - pre
}

// primaryMintDelta finds the non-wrapped-SOL mint with the largest
// absolute balance change for accountIndex, decimal-adjusted.
func primaryMintDelta(update TransactionUpdate, accountIndex int) (string, float64) {
	const wrappedSolMint = "So11111111111111111111111111111111111111112"
	mints := make(map[string]uint8)
	for _, b := range update.PreBalances {
		if b.AccountIndex == accountIndex && b.Mint != "" && b.Mint != wrappedSolMint {
			mints[b.Mint] = b.Decimals
		}
	}
	for _, b := range update.PostBalances {
		if b.AccountIndex == accountIndex && b.Mint != "" && b.Mint != wrappedSolMint {
			mints[b.Mint] = b.Decimals
		}
	}

	var bestMint string
	var bestAbs float64
	for mint, decimals := range mints {
		delta := balanceDelta(update, accountIndex, mint)
		adjusted := float64(delta) / math.Pow10(int(decimals))
		if math.Abs(adjusted) > bestAbs {
			bestAbs = math.Abs(adjusted)
			bestMint = mint
		}
	}
	return bestMint, bestAbs
}

// encodeSignatureBytes renders a raw signature buffer in the base58 form
// every downstream consumer stores and displays.
func encodeSignatureBytes(sig []byte) string {
	return base58.Encode(sig)
}
