package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"

	"github.com/fil-demos/synapse-kit/internal/models"
	"github.com/fil-demos/synapse-kit/pkg/tokens"
)

var paymentsCmd = &cli.Command{
	Name:  "payments",
	Usage: "Inspect and fund the payment account",
	Subcommands: []*cli.Command{
		paymentsStatusCmd,
		paymentsSetupCmd,
	},
}

var paymentsStatusCmd = &cli.Command{
	Name:  "status",
	Usage: "Show wallet balances, payment account and operator approval",
	Action: func(c *cli.Context) error {
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)

		ch, err := connectChain(ctx, cfg, log, cfg.PrivateKey, "PRIVATE_KEY")
		if err != nil {
			return err
		}
		defer ch.Close()
		p := ch.payments

		token, err := p.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to read token metadata: %w", err)
		}
		fil, err := p.NativeBalance(ctx)
		if err != nil {
			return fmt.Errorf("failed to read FIL balance: %w", err)
		}
		wallet, err := p.WalletBalance(ctx)
		if err != nil {
			return fmt.Errorf("failed to read %s balance: %w", token.Symbol, err)
		}
		info, err := p.AccountInfo(ctx)
		if err != nil {
			return fmt.Errorf("failed to read payment account: %w", err)
		}
		approval, err := p.ServiceApproval(ctx, cfg.WarmStorageAddress)
		if err != nil {
			return fmt.Errorf("failed to read operator approval: %w", err)
		}
		rails, err := p.RailsAsPayer(ctx)
		if err != nil {
			return fmt.Errorf("failed to read payment rails: %w", err)
		}

		f410, err := ch.key.FilecoinAddress()
		if err != nil {
			return fmt.Errorf("failed to derive filecoin address: %w", err)
		}

		amount := func(a tokens.Amount) string {
			return tokens.Format(a, token.Decimals) + " " + token.Symbol
		}

		fmt.Printf("Wallet:            %s (%s)\n", p.Address(), f410)
		fmt.Printf("FIL balance:       %s FIL\n", tokens.Format(fil, 18))
		fmt.Printf("Wallet balance:    %s\n", amount(wallet))
		fmt.Println()
		fmt.Printf("Account funds:     %s\n", amount(info.Funds))
		fmt.Printf("Lockup:            %s (+%s per epoch since epoch %d)\n", amount(info.LockupCurrent), amount(info.LockupRate), info.LockupLastSettledAt)
		fmt.Printf("Available:         %s\n", amount(info.AvailableFunds))
		fmt.Println()
		fmt.Printf("Operator:          %s\n", cfg.WarmStorageAddress)
		fmt.Printf("Approved:          %s\n", yesNo(approval.IsApproved))
		fmt.Printf("Rate allowance:    %s (used %s)\n", amount(approval.RateAllowance), amount(approval.RateUsage))
		fmt.Printf("Lockup allowance:  %s (used %s)\n", amount(approval.LockupAllowance), amount(approval.LockupUsage))
		fmt.Printf("Max lockup period: %d epochs\n", approval.MaxLockupPeriod)
		fmt.Println()
		fmt.Printf("Rails as payer:    %d\n", len(rails))
		for _, r := range rails {
			state := color.GreenString("active")
			if r.IsTerminated {
				state = color.RedString("terminated at epoch %d", r.EndEpoch)
			}
			fmt.Printf("  rail %d: %s\n", r.RailID, state)
		}
		return nil
	},
}

var paymentsSetupCmd = &cli.Command{
	Name:  "setup",
	Usage: "Deposit USDFC into the payment account and approve the storage operator",
	Flags: []cli.Flag{
		&cli.StringFlag{Name: "deposit", Value: "10", Usage: "USDFC to deposit, 0 to skip"},
		&cli.StringFlag{Name: "rate-allowance", Value: "10", Usage: "USDFC per epoch the operator may charge"},
		&cli.StringFlag{Name: "lockup-allowance", Value: "1000", Usage: "USDFC the operator may lock up"},
		&cli.Int64Flag{Name: "max-lockup-period", Value: 86400, Usage: "maximum lockup period in epochs"},
	},
	Action: func(c *cli.Context) error {
		ctx := c.Context
		cfg, log := getConfig(c), getLogger(c)

		ch, err := connectChain(ctx, cfg, log, cfg.PrivateKey, "PRIVATE_KEY")
		if err != nil {
			return err
		}
		defer ch.Close()
		p := ch.payments

		token, err := p.Token(ctx)
		if err != nil {
			return fmt.Errorf("failed to read token metadata: %w", err)
		}
		parse := func(flag string) (tokens.Amount, error) {
			a, err := tokens.Parse(c.String(flag), token.Decimals)
			if err != nil {
				return tokens.Amount{}, cli.Exit(fmt.Sprintf("invalid --%s: %v", flag, err), 1)
			}
			return a, nil
		}
		deposit, err := parse("deposit")
		if err != nil {
			return err
		}
		rate, err := parse("rate-allowance")
		if err != nil {
			return err
		}
		lockup, err := parse("lockup-allowance")
		if err != nil {
			return err
		}

		if deposit.Sign() > 0 {
			wallet, err := p.WalletBalance(ctx)
			if err != nil {
				return fmt.Errorf("failed to read %s balance: %w", token.Symbol, err)
			}
			if wallet.Sign() == 0 {
				return cli.Exit(fmt.Sprintf("wallet %s holds no %s: get test tokens from the faucet first", p.Address(), token.Symbol), 1)
			}
			if wallet.LessThan(deposit) {
				return cli.Exit(fmt.Sprintf("wallet holds %s %s, cannot deposit %s", tokens.Format(wallet, token.Decimals), token.Symbol, c.String("deposit")), 1)
			}

			fmt.Printf("Depositing %s %s...\n", c.String("deposit"), token.Symbol)
			tx, err := p.Deposit(ctx, deposit)
			if err != nil {
				return fmt.Errorf("deposit failed: %w", err)
			}
			fmt.Printf("%s %s\n", color.GreenString("Deposit confirmed:"), tx)
		}

		fmt.Printf("Approving operator %s...\n", cfg.WarmStorageAddress)
		tx, err := p.ApproveService(ctx, models.ServiceApprovalParams{
			Operator:        cfg.WarmStorageAddress,
			RateAllowance:   rate,
			LockupAllowance: lockup,
			MaxLockupPeriod: c.Int64("max-lockup-period"),
		})
		if err != nil {
			return fmt.Errorf("operator approval failed: %w", err)
		}
		fmt.Printf("%s %s\n", color.GreenString("Approval confirmed:"), tx)
		return nil
	},
}

func yesNo(b bool) string {
	if b {
		return color.GreenString("yes")
	}
	return color.RedString("no")
}
