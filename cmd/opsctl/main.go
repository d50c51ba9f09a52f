package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	_ "github.com/jackc/pgx/v5/stdlib"

	"shipment-tracking-service/internal/adapters/repositories"
	"shipment-tracking-service/internal/domain"
	"shipment-tracking-service/internal/platform/db"
	"shipment-tracking-service/internal/ports"
)

// opsctl is the operator CLI: inspect the webhook delivery log and
// replay dead-lettered deliveries.
func main() {
	rootCmd := &cobra.Command{
		Use:   "opsctl",
		Short: "Operator tooling for the shipment tracking service",
	}

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(deliveriesCmd())
	rootCmd.AddCommand(deadlettersCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func openDatabase() (*sql.DB, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found (using environment variables)")
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if strings.TrimSpace(databaseURL) == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}
	return db.Open(databaseURL)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			if err := repositories.InitSchema(conn); err != nil {
				return err
			}
			fmt.Println("Schema ready.")
			return nil
		},
	}
}

func deliveriesCmd() *cobra.Command {
	var shipmentID int64
	var status, webhookType string
	var limit int

	cmd := &cobra.Command{
		Use:   "deliveries",
		Short: "List webhook delivery log entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			deliveryLog := repositories.NewPostgresDeliveryLog(conn)
			rows, err := deliveryLog.ListDeliveries(context.Background(), ports.DeliveryFilter{
				ShipmentID: shipmentID,
				Status:     domain.DeliveryStatus(status),
				Type:       domain.WebhookType(webhookType),
				Limit:      limit,
			})
			if err != nil {
				return err
			}

			for _, d := range rows {
				fmt.Printf("%6d  %-22s  shipment=%-6d  retries=%d  %s  %s\n",
					d.ID, d.Type, d.ShipmentID, d.RetryCount, colorStatus(d.Status), d.CreatedAt.Format("2006-01-02 15:04:05"))
				if d.LastError != "" {
					fmt.Printf("        last_error: %s\n", d.LastError)
				}
			}
			fmt.Printf("%d deliveries\n", len(rows))
			return nil
		},
	}

	cmd.Flags().Int64Var(&shipmentID, "shipment", 0, "filter by shipment id")
	cmd.Flags().StringVar(&status, "status", "", "filter by status (pending|retrying|sent|failed)")
	cmd.Flags().StringVar(&webhookType, "type", "", "filter by webhook type")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	return cmd
}

func deadlettersCmd() *cobra.Command {
	var unresolved bool
	var limit int
	var requeueID int64

	cmd := &cobra.Command{
		Use:   "deadletters",
		Short: "List dead-lettered deliveries or requeue one",
		RunE: func(cmd *cobra.Command, args []string) error {
			conn, err := openDatabase()
			if err != nil {
				return err
			}
			defer conn.Close()

			deliveryLog := repositories.NewPostgresDeliveryLog(conn)

			if requeueID > 0 {
				d, err := deliveryLog.Requeue(context.Background(), requeueID)
				if err != nil {
					return err
				}
				fmt.Printf("Dead letter %d requeued: delivery %d is pending again.\n", requeueID, d.ID)
				return nil
			}

			rows, err := deliveryLog.ListDeadLetters(context.Background(), unresolved, limit)
			if err != nil {
				return err
			}

			for _, dl := range rows {
				marker := color.RedString("open")
				if dl.Resolved {
					marker = color.GreenString("resolved")
				}
				fmt.Printf("%6d  %-22s  shipment=%-6d  attempts=%d  %s  %s\n",
					dl.ID, dl.Type, dl.ShipmentID, dl.Attempts, marker, dl.CreatedAt.Format("2006-01-02 15:04:05"))
				fmt.Printf("        reason: %s\n", dl.Reason)
			}
			fmt.Printf("%d dead letters\n", len(rows))
			return nil
		},
	}

	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only unresolved entries")
	cmd.Flags().IntVar(&limit, "limit", 50, "max rows")
	cmd.Flags().Int64Var(&requeueID, "requeue", 0, "requeue the dead letter with this id")
	return cmd
}

func colorStatus(s domain.DeliveryStatus) string {
	switch s {
	case domain.DeliverySent:
		return color.GreenString(string(s))
	case domain.DeliveryFailed:
		return color.RedString(string(s))
	case domain.DeliveryRetrying:
		return color.YellowString(string(s))
	default:
		return string(s)
	}
}
