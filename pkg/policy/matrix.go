package policy

// builtinMatrix is the default permission matrix. Departments absent here,
// or environments where a department has empty allow-lists, effectively
// cannot self-serve and need an explicit environment grant.
var builtinMatrix = Matrix{
	"aws": {
		"dev": {
			"Engineering": {
				AllowedInstanceTypes: []string{"t3.micro", "t3.small", "t3.medium", "t3.large"},
				AllowedRegions:       []string{"us-east-1", "us-west-2", "ap-south-1"},
				MaxStorageGB:         50,
			},
			"DataScience": {
				AllowedInstanceTypes: []string{"t3.medium", "t3.large", "t3.xlarge"},
				AllowedRegions:       []string{"us-east-1", "ap-south-1"},
				MaxStorageGB:         100,
			},
			"DevOps": {
				AllowedInstanceTypes: []string{"t3.micro", "t3.small", "t3.medium", "t3.large", "m5.large"},
				AllowedRegions:       []string{"us-east-1", "us-west-2", "ap-south-1", "eu-west-1"},
				MaxStorageGB:         100,
			},
			"Finance": {
				AllowedInstanceTypes: []string{"t3.micro"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         50,
				RequiresApproval:     true,
			},
			"Marketing": {
				AllowedInstanceTypes: []string{"t3.micro", "t3.small"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         100,
				RequiresApproval:     true,
			},
			"HR": {
				AllowedInstanceTypes: []string{"t3.micro"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         30,
				RequiresApproval:     true,
			},
		},
		"qa": {
			"Engineering": {
				AllowedInstanceTypes: []string{"t3.small", "t3.medium"},
				AllowedRegions:       []string{"us-east-1", "ap-south-1"},
				MaxStorageGB:         50,
				RequiresApproval:     true,
			},
			"DataScience": {
				AllowedInstanceTypes: []string{"t3.large", "t3.xlarge"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         100,
				RequiresApproval:     true,
			},
			"DevOps": {
				AllowedInstanceTypes: []string{"t3.small", "t3.medium", "t3.large"},
				AllowedRegions:       []string{"us-east-1", "ap-south-1"},
				MaxStorageGB:         100,
				RequiresApproval:     true,
			},
			"Finance": {
				AllowedInstanceTypes: []string{"t3.micro"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         30,
				RequiresApproval:     true,
			},
			"Marketing": {
				AllowedInstanceTypes: []string{"t3.micro"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         50,
				RequiresApproval:     true,
			},
			"HR": {
				RequiresApproval: true,
			},
		},
		"prod": {
			"Engineering": {
				RequiresApproval: true,
			},
			"DataScience": {
				RequiresApproval: true,
			},
			"DevOps": {
				AllowedInstanceTypes: []string{"t3.medium", "t3.large", "m5.large"},
				AllowedRegions:       []string{"us-east-1"},
				MaxStorageGB:         100,
				RequiresApproval:     true,
			},
			"Finance": {
				RequiresApproval: true,
			},
			"Marketing": {
				RequiresApproval: true,
			},
			"HR": {
				RequiresApproval: true,
			},
		},
	},
}
