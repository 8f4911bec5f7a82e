// tokengen builds an interaction event for manual testing against
// POST /v1/interactions. It prints the JSON body to stdout:
//
//	go run scripts/tokengen.go -op mkshop -actor 10001 | \
//	  curl -s -d @- localhost:8080/v1/interactions
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/caseflow/caseflow/internal/application/dispatcher"
	"github.com/caseflow/caseflow/internal/domain/action"
)

type options struct {
	op        string
	caseID    string
	staffName string
	amount    string

	guildID   string
	channelID string
	actorID   string
	roles     string
	fields    string
}

func main() {
	var opt options

	flag.StringVar(&opt.op, "op", "", "operation: mkshop|okshop|noshop|agshop|mkmm|reqpay|pay|gotpay|close")
	flag.StringVar(&opt.caseID, "case-id", "", "case identifier; required for everything but mkshop/mkmm")
	flag.StringVar(&opt.staffName, "staff-name", "", "staff profile name for pay tokens")
	flag.StringVar(&opt.amount, "amount", "", "decimal amount for pay tokens")

	flag.StringVar(&opt.guildID, "guild-id", "smoke-guild", "guild identifier")
	flag.StringVar(&opt.channelID, "channel-id", "smoke-channel", "channel identifier")
	flag.StringVar(&opt.actorID, "actor", "smoke", "acting member identifier")
	flag.StringVar(&opt.roles, "roles", "", "comma-separated actor role identifiers")
	flag.StringVar(&opt.fields, "fields", "", "comma-separated key=value form fields")
	flag.Parse()

	op, err := parseOperation(opt.op)
	if err != nil {
		log.Fatal(err)
	}
	tok := action.Token{Op: op, CaseID: strings.TrimSpace(opt.caseID), StaffName: strings.TrimSpace(opt.staffName)}
	if opt.amount != "" {
		tok.Amount, err = decimal.NewFromString(opt.amount)
		if err != nil {
			log.Fatal(err)
		}
	}
	encoded, err := action.Encode(tok)
	if err != nil {
		log.Fatal(err)
	}

	ev := dispatcher.Event{
		GuildID:    opt.guildID,
		ChannelID:  opt.channelID,
		ActorID:    strings.TrimSpace(opt.actorID),
		ActorRoles: splitList(opt.roles),
		Token:      encoded,
		Fields:     parseFields(opt.fields),
	}
	out, err := json.Marshal(ev)
	if err != nil {
		log.Fatal(err)
	}
	_, _ = os.Stdout.Write(out)
}

func parseOperation(raw string) (action.Type, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "mkshop":
		return action.TypeCreateShop, nil
	case "okshop":
		return action.TypeConfirmShop, nil
	case "noshop":
		return action.TypeRejectShop, nil
	case "agshop":
		return action.TypeAgreeShop, nil
	case "mkmm":
		return action.TypeCreateMidman, nil
	case "reqpay":
		return action.TypeRequestPaymentDetails, nil
	case "pay":
		return action.TypePay, nil
	case "gotpay":
		return action.TypeConfirmPaymentReceived, nil
	case "close":
		return action.TypeCloseCase, nil
	default:
		return "", fmt.Errorf("unsupported op: %q", raw)
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseFields(raw string) map[string]string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	out := make(map[string]string)
	for _, part := range strings.Split(raw, ",") {
		k, v, ok := strings.Cut(part, "=")
		if !ok {
			log.Fatalf("malformed field %q, want key=value", part)
		}
		out[strings.TrimSpace(k)] = strings.TrimSpace(v)
	}
	return out
}
