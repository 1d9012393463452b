package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/redis/go-redis/v9"
)

// Dumps the chat key space as a table for debugging: key, store type
// and a short summary of the value. Talks to the store directly, the
// same way an operator with redis-cli would.
func main() {
	addr := flag.String("addr", "localhost:6379", "Redis address")
	password := flag.String("password", "", "Redis password")
	db := flag.Int("db", 0, "Redis database")
	pattern := flag.String("pattern", "chat:*", "Key pattern to scan")
	flag.Parse()

	client := redis.NewClient(&redis.Options{Addr: *addr, Password: *password, DB: *db})
	defer client.Close()

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Fatal("Error while connecting to Redis: ", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Key", "Type", "TTL", "Size", "Preview"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	iter := client.Scan(ctx, 0, *pattern, 0).Iterator()
	for iter.Next(ctx) {
		key := iter.Val()
		keyType, err := client.Type(ctx, key).Result()
		if err != nil {
			fmt.Printf("Error reading type of %s: %v\n", key, err)
			continue
		}
		ttl, _ := client.TTL(ctx, key).Result()

		size, preview := describe(ctx, client, key, keyType)
		table.Append([]string{key, keyType, ttl.String(), size, preview})
	}
	if err := iter.Err(); err != nil {
		log.Fatal("Scan failed: ", err)
	}

	table.Render()
}

func describe(ctx context.Context, client *redis.Client, key, keyType string) (string, string) {
	switch keyType {
	case "string":
		val, err := client.Get(ctx, key).Result()
		if err != nil {
			return "-", "-"
		}
		return fmt.Sprintf("%d", len(val)), truncate(val, 60)
	case "list":
		n, _ := client.LLen(ctx, key).Result()
		head, _ := client.LRange(ctx, key, 0, 0).Result()
		preview := "-"
		if len(head) > 0 {
			preview = truncate(head[0], 60)
		}
		return fmt.Sprintf("%d", n), preview
	case "zset":
		n, _ := client.ZCard(ctx, key).Result()
		members, _ := client.ZRange(ctx, key, 0, 4).Result()
		return fmt.Sprintf("%d", n), truncate(strings.Join(members, ", "), 60)
	case "set":
		n, _ := client.SCard(ctx, key).Result()
		members, _ := client.SMembers(ctx, key).Result()
		return fmt.Sprintf("%d", n), truncate(strings.Join(members, ", "), 60)
	default:
		return "-", "-"
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
